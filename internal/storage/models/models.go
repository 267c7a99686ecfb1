package models

import (
	"time"
)

// 注意：不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// FrameLog 映射 frame_log 表（上下行帧日志）
type FrameLog struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	LinkID string `gorm:"column:link_id;type:text;not null;index:idx_framelog_link_time,priority:1"`
	// up | down
	Direction string `gorm:"column:direction;type:varchar(8);not null"`
	Code      int16  `gorm:"column:code;not null"`
	// 下行为命令名，上行为消息种类
	Name     string  `gorm:"column:name;type:text;not null"`
	Param    int32   `gorm:"column:param;not null;default:0"`
	Feedback bool    `gorm:"column:feedback;not null;default:false"`
	Result   string  `gorm:"column:result;type:varchar(16);not null"`
	Error    *string `gorm:"column:error;type:text"`
	// 原始 10 字节帧，解析错误时为空
	Frame     []byte    `gorm:"column:frame"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_framelog_link_time,priority:2,sort:desc"`
}

func (FrameLog) TableName() string { return "frame_log" }
