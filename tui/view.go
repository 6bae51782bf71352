package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/robertmeta/rover-cli/controller"
	"github.com/robertmeta/rover-cli/model"
	"github.com/robertmeta/rover-cli/validate"
)

// View renders the UI.
func (a App) View() string {
	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n\n")

	if a.state.View == controller.FavoritesView {
		b.WriteString(a.renderFavorites())
	} else {
		b.WriteString(a.renderSearch())
	}

	if bar := a.renderMessages(); bar != "" {
		b.WriteString("\n")
		b.WriteString(bar)
	}

	b.WriteString("\n")
	if a.state.View == controller.FavoritesView {
		b.WriteString(a.help.ShortHelpView(keys.favoritesHelp()))
	} else {
		b.WriteString(a.help.ShortHelpView(keys.searchHelp()))
	}

	if a.width > 0 {
		return lipgloss.NewStyle().MaxWidth(a.width).Render(b.String())
	}
	return b.String()
}

func (a App) renderHeader() string {
	search, favorites := InactiveTab, InactiveTab
	if a.state.View == controller.FavoritesView {
		favorites = ActiveTab
	} else {
		search = ActiveTab
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TitleStyle.Render("Mars Rover Photos"),
		" ",
		search.Render("Search"),
		favorites.Render(fmt.Sprintf("Favorites (%d)", len(a.state.Favorites))),
	)
	if a.loading {
		header += " " + a.spinner.View()
	}
	return header
}

func (a App) renderSearch() string {
	var b strings.Builder
	form := a.state.Form

	rover := form.Rover
	if rover == "" {
		rover = "Select a rover"
	}
	b.WriteString(a.renderOption(fieldRover, "Rover", rover))
	b.WriteString(a.renderFieldError(controller.FieldRover))

	camera := form.Camera
	if camera == "" {
		camera = "Any camera"
	}
	b.WriteString(a.renderOption(fieldCamera, "Camera", camera))
	b.WriteString(a.renderOption(fieldMode, "Date", form.Mode.String()))

	label, errField := "Earth date", validate.FieldEarthDate
	hint := ""
	if form.Mode == model.DateSol {
		label, errField = "Sol", validate.FieldSol
	} else if a.state.Manifest.Available() {
		hint = fmt.Sprintf("%s to %s",
			a.state.Manifest.Min.Format(model.DateLayout),
			a.state.Manifest.Max.Format(model.DateLayout))
	}
	b.WriteString(a.label(fieldDate, label))
	b.WriteString(a.input.View())
	if hint != "" {
		b.WriteString("  " + MutedStyle.Render(hint))
	}
	b.WriteString("\n")
	b.WriteString(a.renderFieldError(errField))
	b.WriteString("\n")

	switch {
	case a.state.NoResults:
		b.WriteString(NoticeStyle.Render("No images found for the selected criteria."))
		b.WriteString("\n")
	case len(a.state.Results) > 0:
		b.WriteString(a.label(fieldResults, "Results"))
		b.WriteString(MutedStyle.Render(fmt.Sprintf("%d shown", len(a.state.Results))))
		b.WriteString("\n")
		b.WriteString(renderList(a.state.Results, a.cursor, a.focus == fieldResults))
	}

	return b.String()
}

func (a App) renderFavorites() string {
	favs := a.state.Favorites
	if len(favs) == 0 {
		return MutedStyle.Render("No saved images.") + "\n"
	}

	if slide, ok := a.state.CurrentSlide(); ok {
		body := fmt.Sprintf("Slide %d/%d\n\n%s\n%s\n\n%s",
			a.state.Carousel.Index+1, len(favs),
			describe(slide),
			MutedStyle.Render(slide.Rover.Name),
			slide.ImgSrc)
		return SlideStyle.Render(body) + "\n"
	}

	return renderList(favs, a.cursor, true)
}

func (a App) renderOption(f field, label, value string) string {
	if a.focus == f {
		value = "‹ " + value + " ›"
	}
	return a.label(f, label) + value + "\n"
}

func (a App) label(f field, text string) string {
	if a.focus == f && a.state.View == controller.SearchView {
		return FocusedLabel.Render(text)
	}
	return LabelStyle.Render(text)
}

func (a App) renderFieldError(name string) string {
	msg, ok := a.state.FieldErrors[name]
	if !ok {
		return ""
	}
	return FieldError.Render(msg) + "\n"
}

func (a App) renderMessages() string {
	var lines []string
	if a.state.Failure != "" {
		lines = append(lines, ErrorStyle.Render("Error: "+a.state.Failure))
	}
	if a.state.Notice != "" {
		lines = append(lines, NoticeStyle.Render(a.state.Notice))
	}
	if a.state.Confirmation != "" {
		lines = append(lines, ConfirmStyle.Render(a.state.Confirmation))
	}
	return strings.Join(lines, "\n")
}

func renderList(photos []model.Photo, cursor int, focused bool) string {
	var b strings.Builder
	for i, p := range photos {
		line := fmt.Sprintf("%2d. %s", i+1, describe(p))
		if focused && i == cursor {
			b.WriteString(SelectedItem.Render(line))
		} else {
			b.WriteString(NormalItem.Render(line))
		}
		b.WriteString("\n")
	}
	if focused && cursor < len(photos) {
		b.WriteString(MutedStyle.Render("    " + photos[cursor].ImgSrc))
		b.WriteString("\n")
	}
	return b.String()
}

func describe(p model.Photo) string {
	sol := "Sol -"
	if p.HasSol() {
		sol = fmt.Sprintf("Sol %d", p.SolValue())
	}
	camera := p.Camera.FullName
	if camera == "" {
		camera = p.Camera.Name
	}
	return fmt.Sprintf("#%d  %s  %s  %s", p.ID, camera, sol, p.EarthDate)
}
