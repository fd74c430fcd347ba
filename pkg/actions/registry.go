package actions

import (
	"context"
	"regexp"
	"strings"
)

// Kind enumerates the local side-effects an option can request.
type Kind int

const (
	Unknown Kind = iota
	Call
	RedirectPromo
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case RedirectPromo:
		return "redirect_promo"
	case Unknown:
		return "unknown"
	default:
		return "unknown"
	}
}

const (
	callPrefix        = "call_"
	redirectPromoName = "redirect_to_promo_page"
)

var phoneNumberRe = regexp.MustCompile(`^\+?[0-9]{3,15}$`)

// Action is a resolved action name. Number is set for Call.
type Action struct {
	Name   string
	Kind   Kind
	Number string
}

// Effects performs side-effects outside the chat session.
type Effects interface {
	OpenURL(ctx context.Context, url string) error
	Dial(ctx context.Context, number string) error
}

// Registry maps symbolic action names to effects. The set of kinds is closed.
type Registry struct {
	PromoURL string
}

func NewRegistry(promoURL string) *Registry {
	return &Registry{PromoURL: promoURL}
}

// Resolve parses name. Names that match no entry resolve to Unknown.
func (r *Registry) Resolve(name string) Action {
	name = strings.TrimSpace(name)
	switch {
	case name == redirectPromoName:
		return Action{Name: name, Kind: RedirectPromo}
	case strings.HasPrefix(name, callPrefix):
		number := strings.TrimPrefix(name, callPrefix)
		if phoneNumberRe.MatchString(number) {
			return Action{Name: name, Kind: Call, Number: number}
		}
	}
	return Action{Name: name, Kind: Unknown}
}

// Invoke runs the effect of a. It reports false for Unknown actions, which
// callers log and otherwise ignore.
func (r *Registry) Invoke(ctx context.Context, fx Effects, a Action) (bool, error) {
	switch a.Kind {
	case Call:
		return true, fx.Dial(ctx, a.Number)
	case RedirectPromo:
		return true, fx.OpenURL(ctx, r.PromoURL)
	case Unknown:
		return false, nil
	default:
		return false, nil
	}
}
