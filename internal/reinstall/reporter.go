package reinstall

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/shinji-kodama/reinstall/internal/model"
)

// ANSI palette indexes, so the colors follow the user's terminal theme.
const (
	colorRed    = lipgloss.Color("1")
	colorGreen  = lipgloss.Color("2")
	colorYellow = lipgloss.Color("3")
)

// Reporter prints the human-readable status lines of a run: yellow for a
// step in progress, green for completion, red for failures.
type Reporter struct {
	w io.Writer

	progress lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
}

// NewReporter creates a Reporter writing to w.
//
// In ColorAuto mode the renderer detects whether w is a terminal, and
// NO_COLOR disables colors. ColorAlways and ColorNever override detection.
func NewReporter(w io.Writer, mode model.ColorMode) *Reporter {
	renderer := lipgloss.NewRenderer(w)
	switch mode {
	case model.ColorAlways:
		renderer.SetColorProfile(termenv.ANSI)
	case model.ColorNever:
		renderer.SetColorProfile(termenv.Ascii)
	default:
		if os.Getenv("NO_COLOR") != "" {
			renderer.SetColorProfile(termenv.Ascii)
		}
	}

	return &Reporter{
		w:        w,
		progress: renderer.NewStyle().Foreground(colorYellow),
		success:  renderer.NewStyle().Foreground(colorGreen),
		failure:  renderer.NewStyle().Foreground(colorRed).Bold(true),
	}
}

// Uninstalling announces the uninstall step.
func (r *Reporter) Uninstalling(pkg string) {
	r.line(r.progress, fmt.Sprintf("Uninstalling %s...", pkg))
}

// Installing announces the editable install step.
func (r *Reporter) Installing(pkg string) {
	r.line(r.progress, fmt.Sprintf("Installing %s in editable mode...", pkg))
}

// Linked reports a successful registry verification.
func (r *Reporter) Linked(pkg, dir string) {
	r.line(r.success, fmt.Sprintf("Verified %s is linked to %s", pkg, dir))
}

// Done announces the end of the sequence.
func (r *Reporter) Done() {
	r.line(r.success, "Done!")
}

// StepFailed reports a step that stopped a fail-fast run.
func (r *Reporter) StepFailed(kind model.StepKind, code int) {
	r.line(r.failure, fmt.Sprintf("%s failed (exit %d)", kind.Title(), code))
}

// VerifyFailed reports a failed registry verification.
func (r *Reporter) VerifyFailed(message string) {
	r.line(r.failure, "Verification failed: "+message)
}

func (r *Reporter) line(style lipgloss.Style, text string) {
	fmt.Fprintln(r.w, style.Render(text))
}
