package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
	renderer *RelationRenderer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
		renderer: NewRelationRenderer(useColor),
	}
}

// Handle implements the Handler interface: prints events as they occur.
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case PollBegin:
		return fmt.Sprintf("%s %s poll starting", latency, f.colorize("===", color.FgYellow))

	case PollComplete:
		return fmt.Sprintf("%s %s poll settled", latency, f.colorize("===", color.FgGreen))

	case StratumBegin:
		idx := event.Data["stratum"]
		rules := event.Data["rule.count"]
		return fmt.Sprintf("%s stratum %v starting (%v rules)", latency, idx, rules)

	case StratumComplete:
		idx := event.Data["stratum"]
		rounds := event.Data["round.count"]
		return fmt.Sprintf("%s stratum %v settled after %v rounds", latency, idx, rounds)

	case IntensionalInsert:
		rel := event.Data["relation"].(string)
		return fmt.Sprintf("%s %s derived", latency, f.renderer.colorizeName(rel))

	case IntensionalResupport:
		rel := event.Data["relation"].(string)
		return fmt.Sprintf("%s %s resupported", latency, f.renderer.colorizeName(rel))

	case IntensionalDecrement:
		rel := event.Data["relation"].(string)
		return fmt.Sprintf("%s %s support decremented", latency, f.renderer.colorizeName(rel))

	case RemovalQueued:
		rel := event.Data["relation"].(string)
		return fmt.Sprintf("%s removal queued for %s", latency, f.renderer.colorizeName(rel))

	case CascadeSettled:
		count := 0
		if v, ok := event.Data["fact.count"].(int); ok {
			count = v
		}
		return fmt.Sprintf("%s cascade settled, %s unwound",
			latency, f.colorizeCount("facts", count))

	case ErrorProgramInvalid, ErrorRuntime:
		return fmt.Sprintf("%s %s %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["error"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		us := d.Microseconds()
		s := fmt.Sprintf("[%dµs]", us)
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "relations":
		return color.CyanString(text)
	case "facts", "tuples":
		return color.MagentaString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// ConsoleHandler creates a handler that prints formatted events to stdout.
func ConsoleHandler() Handler {
	formatter := NewOutputFormatter(os.Stdout)
	return func(event Event) {
		out := formatter.Format(event)
		if out != "" {
			fmt.Fprintln(formatter.writer, out)
		}
	}
}

// isTerminal checks if the file descriptor is a terminal. Simplified:
// a real implementation would use golang.org/x/term.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
