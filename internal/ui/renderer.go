// Package ui handles terminal output and formatting.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/perplexity-webui-go/pkg/models"
)

// Renderer handles terminal output formatting.
type Renderer struct {
	out       io.Writer
	mdRender  *glamour.TermRenderer
	width     int
	useColors bool
}

// Styles for different output elements.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	SourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	SpinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

// NewRenderer creates a renderer writing to stdout.
func NewRenderer() (*Renderer, error) {
	return NewRendererWithOptions(os.Stdout, 80, true)
}

// NewRendererWithOptions creates a renderer with custom options.
func NewRendererWithOptions(out io.Writer, width int, useColors bool) (*Renderer, error) {
	style := "dark"
	if !useColors {
		style = "notty"
	}

	mdRender, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithStylePath(style),
	)
	if err != nil {
		// Fallback to basic renderer
		mdRender, _ = glamour.NewTermRenderer(
			glamour.WithWordWrap(width),
		)
	}

	return &Renderer{
		out:       out,
		mdRender:  mdRender,
		width:     width,
		useColors: useColors,
	}, nil
}

// RenderMarkdown renders markdown content.
func (r *Renderer) RenderMarkdown(content string) error {
	if r.mdRender == nil {
		fmt.Fprintln(r.out, content)
		return nil
	}

	rendered, err := r.mdRender.Render(content)
	if err != nil {
		// Fallback to raw content on error
		fmt.Fprintln(r.out, content)
		return nil
	}

	fmt.Fprint(r.out, rendered)
	return nil
}

// RenderResponse renders a complete answer: title, markdown body, sources.
func (r *Renderer) RenderResponse(resp models.Response) error {
	if resp.Title != "" {
		r.RenderTitle(resp.Title)
	}

	if resp.Answer != "" {
		if err := r.RenderMarkdown(resp.Answer); err != nil {
			return err
		}
	}

	r.RenderSearchResults(resp.SearchResults)
	return nil
}

// RenderSearchResults renders the numbered source list.
func (r *Renderer) RenderSearchResults(results []models.SearchResultItem) {
	var usable []models.SearchResultItem
	for _, res := range results {
		// The API reports internal tool hits as results pointing at itself.
		if res.URL == "" || res.URL == "https://perplexity.ai" {
			continue
		}
		usable = append(usable, res)
	}
	if len(usable) == 0 {
		return
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Sources:"))

	for i, res := range usable {
		title := res.Title
		if title == "" {
			title = res.URL
		}

		num := fmt.Sprintf("[%d]", i+1)
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render(num), SourceStyle.Render(title))
		if res.URL != title {
			fmt.Fprintf(r.out, "    %s\n", DimStyle.Render(res.URL))
		}
	}
}

// RenderStreamDelta prints the part of next that extends prev. Snapshots are
// cumulative, so the delta is the suffix; a non-extending snapshot prints
// nothing.
func (r *Renderer) RenderStreamDelta(prev, next string) string {
	if !strings.HasPrefix(next, prev) {
		return prev
	}
	fmt.Fprint(r.out, next[len(prev):])
	return next
}

// RenderError renders an error message.
func (r *Renderer) RenderError(err error) {
	if r.useColors {
		fmt.Fprintln(r.out, ErrorStyle.Render("Error: "+err.Error()))
	} else {
		fmt.Fprintln(r.out, "Error: "+err.Error())
	}
}

// RenderSuccess renders a success message.
func (r *Renderer) RenderSuccess(msg string) {
	if r.useColors {
		fmt.Fprintln(r.out, SuccessStyle.Render(msg))
	} else {
		fmt.Fprintln(r.out, msg)
	}
}

// RenderWarning renders a warning message.
func (r *Renderer) RenderWarning(msg string) {
	if r.useColors {
		fmt.Fprintln(r.out, WarningStyle.Render("Warning: "+msg))
	} else {
		fmt.Fprintln(r.out, "Warning: "+msg)
	}
}

// RenderInfo renders an info message.
func (r *Renderer) RenderInfo(msg string) {
	if r.useColors {
		fmt.Fprintln(r.out, InfoStyle.Render(msg))
	} else {
		fmt.Fprintln(r.out, msg)
	}
}

// RenderTitle renders a title.
func (r *Renderer) RenderTitle(title string) {
	if r.useColors {
		fmt.Fprintln(r.out, TitleStyle.Render(title))
	} else {
		fmt.Fprintln(r.out, strings.ToUpper(title))
		fmt.Fprintln(r.out, strings.Repeat("=", len(title)))
	}
}

// RenderSpinner renders a spinner character.
func (r *Renderer) RenderSpinner(frame int) {
	idx := frame % len(SpinnerChars)
	fmt.Fprintf(r.out, "\r%s ", SpinnerChars[idx])
}

// ClearLine clears the current line.
func (r *Renderer) ClearLine() {
	fmt.Fprint(r.out, "\r\033[K")
}

// NewLine prints a newline.
func (r *Renderer) NewLine() {
	fmt.Fprintln(r.out)
}
