package tui

import (
	"fmt"
	"strings"

	"github.com/twrkit/internal/journal"
	"github.com/twrkit/pkg/transfer"
	"github.com/twrkit/pkg/twitter"
)

// Tweet renders one status.
func Tweet(t twitter.Tweet) string {
	var b strings.Builder
	b.WriteString(ValueStyle.Render(t.User.Name))
	if t.User.ScreenName != "" {
		b.WriteString(" " + DimStyle.Render("@"+t.User.ScreenName))
	}
	b.WriteString(" " + DimStyle.Render(t.IDStr))
	b.WriteString("\n")
	b.WriteString(t.Text)
	if t.InReplyToStatusIDStr != "" {
		b.WriteString("\n" + DimStyle.Render(ArrowRight+" in reply to "+t.InReplyToStatusIDStr))
	}
	return b.String()
}

// Tweets renders a list of statuses separated by dividers.
func Tweets(ts []twitter.Tweet) string {
	if len(ts) == 0 {
		return DimStyle.Render("no statuses")
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = Tweet(t)
	}
	return strings.Join(parts, "\n"+Divider(40)+"\n")
}

// Progress renders a transfer progress line.
func Progress(p transfer.Progress) string {
	arrow := ArrowDown
	if p.Mode == transfer.ModeUpload {
		arrow = ArrowUp
	}
	return fmt.Sprintf("%s %s %s", arrow, ProgressBar(p.Fraction(), 30),
		DimStyle.Render(fmt.Sprintf("%d/%d", p.Done, p.Total)))
}

// Entry renders journal entry metadata, eliding binary previews.
func Entry(e *journal.Entry) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(" "+e.UID+" ") + "\n")
	for _, k := range e.Keys() {
		v := e.Get(k)
		if k == journal.KeyPreview {
			v = fmt.Sprintf("<%d bytes>", len(v))
		}
		b.WriteString(LabelStyle.Render(k) + " " + v + "\n")
	}
	return b.String()
}

// OK renders a success line.
func OK(msg string) string {
	return SuccessStyle.Render(CheckMark) + " " + msg
}

// Fail renders a failure line.
func Fail(msg string) string {
	return ErrorStyle.Render(CrossMark) + " " + msg
}
