package chat

import (
	"fmt"
	"time"
)

// WelcomeOptionCount is the number of top-level intents offered on connect.
const WelcomeOptionCount = 3

// Welcome is the greeting synthesized locally once a session connects.
type Welcome struct {
	Text    string   `yaml:"text" validate:"required"`
	Options []string `yaml:"options" validate:"len=3,dive,required"`
}

func DefaultWelcome() Welcome {
	return Welcome{
		Text: "Chào bạn! Tôi là trợ lý ảo của LOTTE Finance, bạn có thể cho tôi biết tôi có thể giúp gì cho bạn hôm nay không ạ?",
		Options: []string{
			"Tư vấn đăng ký khoản vay tín chấp",
			"Tư vấn mở thẻ tín dụng",
			"Tư vấn đăng ký sản phẩm khác (Vay ô tô, Trả góp Y tế/Giáo dục, Mua trước trả sau)",
		},
	}
}

// Message builds the assistant message for w. Every option is a plain reply.
func (w Welcome) Message(at time.Time) Message {
	options := make([]QuickOption, 0, len(w.Options))
	for i, label := range w.Options {
		options = append(options, QuickOption{ID: fmt.Sprintf("%d", i+1), Label: label})
	}
	return NewAssistantMessage(w.Text, at, options, "")
}
