package service

import (
	"fmt"
	"strings"

	"github.com/maheshrc27/postflow/internal/models"
)

const defaultAuthor = "unknown"

// RenderCaption builds the post caption from the item's metadata. Stories carry
// no caption.
func RenderCaption(item *models.QueueItem, form string) string {
	if form == models.MediaFormStory {
		return ""
	}

	title := strings.TrimSpace(item.Metadata.Title)
	if title == "" {
		title = strings.TrimSpace(item.Metadata.OriginalTitle)
	}
	author := strings.TrimPrefix(strings.TrimSpace(item.Metadata.Author), "@")
	if author == "" {
		author = defaultAuthor
	}
	tag := "reels"
	if item.MediaKind == models.MediaKindImage {
		tag = "pinterest"
	}

	return fmt.Sprintf("%s\n\nCredit: @%s #%s", title, author, tag)
}

// MediaFormFor picks the publish form for an item and whether the stored media
// is video, judged by its sniffed content type.
func MediaFormFor(item *models.QueueItem, contentType string) (form string, isVideo bool) {
	isVideo = strings.HasPrefix(contentType, "video/")
	switch {
	case strings.EqualFold(item.Metadata.Form, models.MediaFormStory):
		return models.MediaFormStory, isVideo
	case item.MediaKind == models.MediaKindImage:
		return models.MediaFormImage, false
	default:
		return models.MediaFormReel, true
	}
}
