package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDescriptionPrompt(t *testing.T) {
	t.Parallel()

	req := DescriptionBatchRequest{
		OutlineText:   "1. Intro\n2. History\n3. Outlook",
		OriginalInput: "A deck about the history of computing",
		Language:      "en",
	}
	page := PageOutline{
		PageID: "page-2",
		Title:  "History",
		Points: []string{"Mainframes", "Personal computers"},
	}

	prompt := buildDescriptionPrompt(req, page, 2)

	assert.Contains(t, prompt, "A deck about the history of computing")
	assert.Contains(t, prompt, "1. Intro\n2. History\n3. Outlook")
	assert.Contains(t, prompt, "description for page 2")
	assert.Contains(t, prompt, "History")
	assert.Contains(t, prompt, "- Mainframes")
	assert.Contains(t, prompt, "- Personal computers")
	assert.Contains(t, prompt, "rendered directly onto the slide")
	assert.Contains(t, prompt, "Please output all in English.")
}

func TestBuildDescriptionPromptOmitsEmptySections(t *testing.T) {
	t.Parallel()

	req := DescriptionBatchRequest{OutlineText: "outline"}
	page := PageOutline{PageID: "p1", Title: "Only page"}

	prompt := buildDescriptionPrompt(req, page, 1)

	assert.NotContains(t, prompt, "original request")
	assert.NotContains(t, prompt, "Please output all in")
}

func TestBuildImagePrompt(t *testing.T) {
	t.Parallel()

	t.Run("with template and materials", func(t *testing.T) {
		t.Parallel()

		req := ImageBatchRequest{
			OutlineText:       "full outline",
			TemplateImage:     []byte{1},
			MaterialImages:    [][]byte{{2}},
			ExtraRequirements: "Use a dark theme",
			Language:          "ja",
		}
		page := PageImageSpec{
			PageID:      "page-1",
			Description: "Page Title: Intro",
			Section:     "Opening",
			Index:       1,
		}

		prompt := buildImagePrompt(req, page)

		assert.Contains(t, prompt, "<page_description>\nPage Title: Intro\n</page_description>")
		assert.Contains(t, prompt, "Current section: Opening")
		assert.Contains(t, prompt, "strictly similar to the template image")
		assert.Contains(t, prompt, "extra material images are provided")
		assert.Contains(t, prompt, "Extra Requirements (Must Follow):\nUse a dark theme")
		assert.Contains(t, prompt, "cover slide")
		assert.Contains(t, prompt, "スライドのテキストは全て日本語で出力してください。")
	})

	t.Run("plain interior page", func(t *testing.T) {
		t.Parallel()

		req := ImageBatchRequest{OutlineText: "outline"}
		page := PageImageSpec{PageID: "page-4", Description: "desc", Index: 4}

		prompt := buildImagePrompt(req, page)

		assert.NotContains(t, prompt, "template image")
		assert.NotContains(t, prompt, "material images")
		assert.NotContains(t, prompt, "Extra Requirements")
		assert.NotContains(t, prompt, "cover slide")
	})
}

func TestBuildEditPrompt(t *testing.T) {
	t.Parallel()

	t.Run("with original description", func(t *testing.T) {
		t.Parallel()

		prompt := buildEditPrompt("make the title red", "Page Title: Intro")

		assert.Contains(t, prompt, "Page Title: Intro")
		assert.Contains(t, prompt, "make the title red")
		assert.Contains(t, prompt, "Maintain the original text content")
	})

	t.Run("strips stale material references", func(t *testing.T) {
		t.Parallel()

		original := "Page Title: Intro\n\nOther page materials\n- old-image-1.png"
		prompt := buildEditPrompt("swap the chart", original)

		assert.Contains(t, prompt, "Page Title: Intro")
		assert.NotContains(t, prompt, "old-image-1.png")
	})

	t.Run("without original description", func(t *testing.T) {
		t.Parallel()

		prompt := buildEditPrompt("crop tighter", "")

		assert.Contains(t, prompt, "crop tighter")
		assert.Contains(t, prompt, "Maintain the original content structure")
	})
}

func TestBuildMaterialPrompt(t *testing.T) {
	t.Parallel()

	req := MaterialRequest{
		MaterialID: "mat-1",
		SourceText: "Quarterly revenue grew 14% year over year.",
		Language:   "zh",
	}

	prompt := buildMaterialPrompt(req)

	assert.Contains(t, prompt, "Quarterly revenue grew 14%")
	assert.Contains(t, prompt, "markdown list")
	assert.Contains(t, prompt, "请全部使用中文输出。")
}

func TestLanguageInstruction(t *testing.T) {
	t.Parallel()

	assert.Empty(t, languageInstruction(""))
	assert.Empty(t, languageInstruction("auto"))
	assert.Equal(t, "Please output all in English.", languageInstruction("en"))
	assert.Contains(t, languageInstruction("fr"), "fr")
}
