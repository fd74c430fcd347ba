package actions

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SystemEffects hands URLs to the platform opener. Dial opens a tel: URL and
// copies the number to the clipboard.
type SystemEffects struct{}

var _ Effects = SystemEffects{}

func (SystemEffects) OpenURL(_ context.Context, url string) error {
	if url == "" {
		return errors.New("open url: empty url")
	}
	name, args := openerCommand(url)
	// the opener must outlive the request context
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "open url %s", url)
	}
	go func() { _ = cmd.Wait() }()
	log.Info().Str("component", "actions").Str("url", url).Msg("opened url")
	return nil
}

func (fx SystemEffects) Dial(ctx context.Context, number string) error {
	if err := clipboard.WriteAll(number); err != nil {
		log.Debug().Err(err).Str("component", "actions").Msg("clipboard unavailable")
	}
	return fx.OpenURL(ctx, "tel:"+number)
}

func openerCommand(url string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}
