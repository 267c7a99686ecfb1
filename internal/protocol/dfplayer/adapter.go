package dfplayer

// Adapter 协议适配器：逐字节喂入 Parser + 路由表。
// 与 Parser 一样只服务一条接收流。
type Adapter struct {
	parser    *Parser
	table     *Table
	onResult  func(Status)
	onError   func(error)
	onMessage func(Message)
}

func NewAdapter() *Adapter { return &Adapter{parser: NewParser(), table: NewTable()} }

// Register 注册指令处理器
func (a *Adapter) Register(code Code, h Handler) { a.table.Register(code, h) }

// SetFallback 设置默认处理器
func (a *Adapter) SetFallback(h Handler) { a.table.SetFallback(h) }

// SetHooks 安装观察回调（任一可为 nil）：每字节结果、解析错误、每条完整消息（先于路由）
func (a *Adapter) SetHooks(onResult func(Status), onError func(error), onMessage func(Message)) {
	a.onResult, a.onError, a.onMessage = onResult, onError, onMessage
}

// Reset 丢弃半帧
func (a *Adapter) Reset() { a.parser.Reset() }

// State 当前解析状态
func (a *Adapter) State() State { return a.parser.State() }

// ProcessBytes 处理上行字节流。解析错误只回调不中断；返回第一个处理器错误（剩余字节仍会处理）。
func (a *Adapter) ProcessBytes(p []byte) error {
	var firstErr error
	for _, b := range p {
		res, err := a.parser.ProcessByte(b)
		if a.onResult != nil {
			a.onResult(res.Status)
		}
		if err != nil {
			if a.onError != nil {
				a.onError(err)
			}
			continue
		}
		if res.Status != StatusComplete {
			continue
		}
		if a.onMessage != nil {
			a.onMessage(res.Message)
		}
		if err := a.table.Route(res.Message); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Sniff 粗略判断是否为本协议（起始标志 + 版本字节）
func (a *Adapter) Sniff(prefix []byte) bool {
	if len(prefix) < 1 || prefix[0] != StartByte {
		return false
	}
	return len(prefix) < 2 || prefix[1] == VersionByte
}
