package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/habedi/microfeed/client"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

// previewWidth caps the text column of the post table.
const previewWidth = 60

func renderPosts(w io.Writer, posts []client.Post) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Post ID", "Author", "Likes", "Posted", "Text"})

	table.SetColMinWidth(5, previewWidth)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	for i, p := range posts {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			p.ID,
			authorName(p.Author),
			likesCell(p),
			formatTime(p.CreatedAt),
			preview(p.Content),
		})
	}
	table.Render()
}

// renderPost prints one post, as shown for live arrivals and single-post commands.
func renderPost(w io.Writer, p client.Post) {
	fmt.Fprintf(w, "[%s] %s (%s, %s): %s\n", p.ID, authorName(p.Author), formatTime(p.CreatedAt), likesCell(p), preview(p.Content))
	if p.Image != "" {
		fmt.Fprintf(w, "    image: %s\n", p.Image)
	}
}

func authorName(a client.Author) string {
	switch {
	case a.DisplayName != "" && a.Username != "":
		return a.DisplayName + " (@" + a.Username + ")"
	case a.Username != "":
		return "@" + a.Username
	case a.ID != "":
		return "user " + a.ID
	default:
		return "unknown"
	}
}

func likesCell(p client.Post) string {
	if p.LikedByViewer {
		return fmt.Sprintf("%d ♥", p.LikeCount)
	}
	return fmt.Sprintf("%d", p.LikeCount)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// preview flattens text to one line and shortens it to previewWidth runes.
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewWidth {
		return text
	}
	return string(runes[:previewWidth-3]) + "..."
}

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)
}
