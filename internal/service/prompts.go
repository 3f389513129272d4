package service

import (
	"fmt"
	"strings"
)

// languageInstruction returns the output-language constraint appended
// to text prompts. Auto mode leaves the model free to match the input.
func languageInstruction(language string) string {
	switch language {
	case "", "auto":
		return ""
	case "en":
		return "Please output all in English."
	case "ja":
		return "すべて日本語で出力してください。"
	case "zh":
		return "请全部使用中文输出。"
	default:
		return fmt.Sprintf("Please output all in %s.", language)
	}
}

// slideTextInstruction returns the on-slide text language constraint
// used by image prompts.
func slideTextInstruction(language string) string {
	switch language {
	case "", "auto":
		return ""
	case "en":
		return "Use English for the slide text."
	case "ja":
		return "スライドのテキストは全て日本語で出力してください。"
	case "zh":
		return "幻灯片文字请全部使用中文。"
	default:
		return fmt.Sprintf("Use %s for the slide text.", language)
	}
}

// buildDescriptionPrompt produces the prompt for one page's content
// description. The generated description is rendered directly onto the
// slide, so the prompt pins down length and list formatting.
func buildDescriptionPrompt(req DescriptionBatchRequest, page PageOutline, index int) string {
	var sb strings.Builder

	sb.WriteString("We are generating content descriptions for each page of a presentation.\n")
	if req.OriginalInput != "" {
		sb.WriteString("The user's original request is:\n")
		sb.WriteString(req.OriginalInput)
		sb.WriteString("\n\n")
	}
	sb.WriteString("We already have the complete outline:\n")
	sb.WriteString(req.OutlineText)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Now please generate the description for page %d:\n", index)
	sb.WriteString(page.Title)
	for _, point := range page.Points {
		sb.WriteString("\n- ")
		sb.WriteString(point)
	}
	sb.WriteString(`

[Important] The generated "Page Content" will be rendered directly onto the slide, so please ensure:
1. The content is concise, with each point within 15-30 words.
2. Clear organization, using list format.
3. Avoid long sentences and complex expressions.
4. Ensure strong readability, suitable for presentation.
5. Do not include any extra explanatory text or comments.

Output format example:
Page Title: Primitive Society: Symbiosis with Nature

Page Content:
- Hunter-gatherer civilization: Small scale human activity, limited impact on environment
- Strong dependence: Life completely depended on direct supply of natural resources
`)

	if instr := languageInstruction(req.Language); instr != "" {
		sb.WriteString("\n")
		sb.WriteString(instr)
		sb.WriteString("\n")
	}

	return sb.String()
}

// buildImagePrompt produces the prompt for rendering one slide image
// from its description.
func buildImagePrompt(req ImageBatchRequest, page PageImageSpec) string {
	var sb strings.Builder

	sb.WriteString("You are an expert UI/UX presentation designer, focused on generating well-designed slides.\n")
	sb.WriteString("The current slide description is as follows:\n<page_description>\n")
	sb.WriteString(page.Description)
	sb.WriteString("\n</page_description>\n\n")

	sb.WriteString("<reference_information>\nThe entire presentation outline is:\n")
	sb.WriteString(req.OutlineText)
	if page.Section != "" {
		sb.WriteString("\n\nCurrent section: ")
		sb.WriteString(page.Section)
	}
	sb.WriteString("\n</reference_information>\n\n")

	sb.WriteString(`<design_guidelines>
- Require clear and sharp text.
- Automatically design the best composition for the content, rendering the text in "page description" without omission or duplication.
- Do not use markdown symbols (like # and *) unless necessary.
`)
	if len(req.TemplateImage) > 0 {
		sb.WriteString("- Color scheme and design language must be strictly similar to the template image.\n")
		sb.WriteString("- Only reference the style design, do not use the text from the template.\n")
	}
	sb.WriteString("- Use appropriately sized decorative graphics or illustrations to fill empty spaces.\n</design_guidelines>\n")

	if instr := slideTextInstruction(req.Language); instr != "" {
		sb.WriteString(instr)
		sb.WriteString("\n")
	}

	if len(req.MaterialImages) > 0 {
		sb.WriteString("\nHint: In addition to the template reference image (for style reference), extra material images are provided. ")
		sb.WriteString("These material images are elements available for selection; choose suitable images, icons, or charts from them ")
		sb.WriteString("and integrate them into the generated slide where the content calls for it.\n")
	}

	if req.ExtraRequirements != "" {
		sb.WriteString("\nExtra Requirements (Must Follow):\n")
		sb.WriteString(req.ExtraRequirements)
		sb.WriteString("\n")
	}

	if page.Index == 1 {
		sb.WriteString("\nNote: this page is the cover slide. Use professional cover design techniques, make the title stand out, and keep a clear visual hierarchy.\n")
	}

	return sb.String()
}

// buildEditPrompt produces the prompt for an in-place slide edit.
// Content after the materials marker is stripped from the original
// description so stale image references do not steer the edit.
func buildEditPrompt(instruction, originalDescription string) string {
	if originalDescription != "" {
		if idx := strings.Index(originalDescription, "Other page materials"); idx >= 0 {
			originalDescription = strings.TrimSpace(originalDescription[:idx])
		}

		return fmt.Sprintf(`The original description of this slide is:
%s

Now, please modify this slide according to the following instruction: %s

Requirement: Maintain the original text content and design style, only modify according to the instruction. The provided reference image contains both new materials and user-selected regions; judge the user's intent from the relationship between the original image and the reference image.
`, originalDescription, instruction)
	}

	return fmt.Sprintf("Modify this slide according to the following instruction: %s\nMaintain the original content structure and design style, only modify according to the instruction.", instruction)
}

// buildMaterialPrompt produces the prompt for condensing a source
// document into presentation material.
func buildMaterialPrompt(req MaterialRequest) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful assistant that condenses source material for presentation authoring.\n")
	sb.WriteString("Summarize the following source into concise reference material: key facts, figures, and quotable points, in markdown list form.\n\n")
	sb.WriteString(req.SourceText)
	sb.WriteString("\n\nDo not include any extra explanatory text or comments.\n")

	if instr := languageInstruction(req.Language); instr != "" {
		sb.WriteString(instr)
		sb.WriteString("\n")
	}

	return sb.String()
}
