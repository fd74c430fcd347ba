package session

import (
	"context"
	"strings"

	"github.com/go-go-golems/chatsurface/pkg/chat"
)

// SubmitFreeText appends a user message and sends it to the peer. Blank text
// and submissions while not connected are ignored. The local append is kept
// even when the send fails; failures surface through channel events only.
// It reports whether a message was submitted.
func (s *Session) SubmitFreeText(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.closed || s.state != Connected {
		state := s.state
		s.mu.Unlock()
		s.log.Debug().Str("state", state.String()).Msg("ignoring submit while not connected")
		return false
	}
	msg := chat.NewUserMessage(text, s.now())
	if err := s.transcript.Append(ctx, msg); err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("could not append user message")
		return false
	}
	if err := s.channel.Emit(chat.EventSendMessage, chat.NewSendMessagePayload(s.id, msg)); err != nil {
		s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("send failed, keeping local message")
	}
	u := s.messageUpdate(msg)
	s.mu.Unlock()

	s.publish(u)
	return true
}

// SelectOption runs exactly one behavior: open the link, invoke the action, or
// submit the label as free text, in that order of precedence.
func (s *Session) SelectOption(ctx context.Context, opt chat.QuickOption) {
	if s.Closed() {
		return
	}
	switch opt.Kind() {
	case chat.OptionLink:
		if err := s.effects.OpenURL(ctx, opt.Link); err != nil {
			s.log.Warn().Err(err).Str("link", opt.Link).Msg("could not open option link")
		}
	case chat.OptionAction:
		s.runAction(ctx, opt.Action)
	case chat.OptionReply:
		s.SubmitFreeText(ctx, opt.Label)
	}
}

func (s *Session) runAction(ctx context.Context, name string) {
	a := s.registry.Resolve(name)
	known, err := s.registry.Invoke(ctx, s.effects, a)
	if !known {
		s.log.Info().Str("action", name).Msg("unknown action")
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("action", name).Stringer("kind", a.Kind).Msg("action failed")
	}
}

// OpenAuxLink opens the auxiliary link of an assistant message.
func (s *Session) OpenAuxLink(ctx context.Context, msg chat.Message) {
	if !msg.FromAssistant() || msg.AuxLink == "" {
		return
	}
	if err := s.effects.OpenURL(ctx, msg.AuxLink); err != nil {
		s.log.Warn().Err(err).Str("link", msg.AuxLink).Msg("could not open message link")
	}
}
