package chat

// Renderer 将对话事件发送给客户端，事件名见 utils 中的 Event* 常量
type Renderer interface {
	Render(event, data string) error
}

type RenderFunc func(event, data string) error

func (f RenderFunc) Render(event, data string) error {
	return f(event, data)
}
