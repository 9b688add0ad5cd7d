package output

import (
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress returns a callback drawing a progress bar on stderr and a finish
// function. Both are no-ops unless the output is styled terminal text.
func (r *Renderer) Progress(description string) (func(done, total int), func()) {
	if !r.isTTY || r.EffectiveMode() != ModeText {
		return nil, func() {}
	}

	var bar *progressbar.ProgressBar
	update := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(r.errOut),
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "█",
					SaucerHead:    "█",
					SaucerPadding: "░",
				}),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	}
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
			bar = nil
		}
	}
	return update, finish
}
