package service

import (
	"testing"

	"github.com/maheshrc27/postflow/internal/models"
)

func TestRenderCaption(t *testing.T) {
	tests := []struct {
		name string
		item models.QueueItem
		form string
		want string
	}{
		{
			name: "video",
			item: models.QueueItem{MediaKind: models.MediaKindVideo, Metadata: models.QueueMetadata{Title: "Sunset", Author: "jane"}},
			form: models.MediaFormReel,
			want: "Sunset\n\nCredit: @jane #reels",
		},
		{
			name: "image falls back to original title",
			item: models.QueueItem{MediaKind: models.MediaKindImage, Metadata: models.QueueMetadata{OriginalTitle: "Cabin", Author: "@bob"}},
			form: models.MediaFormImage,
			want: "Cabin\n\nCredit: @bob #pinterest",
		},
		{
			name: "missing author",
			item: models.QueueItem{MediaKind: models.MediaKindVideo, Metadata: models.QueueMetadata{Title: "Waves"}},
			form: models.MediaFormReel,
			want: "Waves\n\nCredit: @unknown #reels",
		},
		{
			name: "story has no caption",
			item: models.QueueItem{MediaKind: models.MediaKindVideo, Metadata: models.QueueMetadata{Title: "Waves", Author: "jane"}},
			form: models.MediaFormStory,
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderCaption(&tc.item, tc.form); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMediaFormFor(t *testing.T) {
	tests := []struct {
		kind, metaForm, contentType string
		wantForm                    string
		wantVideo                   bool
	}{
		{models.MediaKindImage, "", "image/jpeg", models.MediaFormImage, false},
		{models.MediaKindVideo, "", "video/mp4", models.MediaFormReel, true},
		{models.MediaKindVideo, "story", "video/mp4", models.MediaFormStory, true},
		{models.MediaKindImage, "STORY", "image/png", models.MediaFormStory, false},
	}
	for _, tc := range tests {
		item := &models.QueueItem{MediaKind: tc.kind, Metadata: models.QueueMetadata{Form: tc.metaForm}}
		form, isVideo := MediaFormFor(item, tc.contentType)
		if form != tc.wantForm || isVideo != tc.wantVideo {
			t.Errorf("MediaFormFor(%s, %q, %s) = %s, %v; want %s, %v", tc.kind, tc.metaForm, tc.contentType, form, isVideo, tc.wantForm, tc.wantVideo)
		}
	}
}
