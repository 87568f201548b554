// internal/ingest/extract.go
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/xeipuuv/gojsonschema"

	commonerrors "screening-engine/internal/common/errors"
	"screening-engine/internal/llm"
	"screening-engine/internal/models"
)

const minExtractedLength = 50

var supportedContentTypes = map[string]string{
	"application/pdf": "application/pdf",
	"application/msword": "application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// resumeSchema validates the model's extraction output before it is
// trusted. Every key must be present; absent values are explicit nulls.
const resumeSchema = `{
	"type": "object",
	"required": ["name", "email", "phone", "yearsOfExperience", "currentPosition",
	             "currentCompany", "skills", "languages", "education", "experience"],
	"properties": {
		"name": {"type": ["string", "null"]},
		"email": {"type": ["string", "null"]},
		"phone": {"type": ["string", "null"]},
		"yearsOfExperience": {"type": ["number", "null"]},
		"currentPosition": {"type": ["string", "null"]},
		"currentCompany": {"type": ["string", "null"]},
		"skills": {"type": "array", "items": {"type": "string"}},
		"languages": {"type": "array", "items": {"type": "string"}},
		"education": {"type": "array", "items": {"type": "string"}},
		"experience": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"company": {"type": "string"},
					"duration": {"type": "string"},
					"description": {"type": "string"}
				}
			}
		}
	}
}`

// ExtractText converts the raw document bytes to plain text. Documents
// without an extractor fail with UNSUPPORTED_FORMAT, near-empty
// extractions with EMPTY_DOCUMENT.
func ExtractText(data []byte, contentType string) (string, error) {
	mimeType, ok := supportedContentTypes[normalizeContentType(contentType)]
	if !ok {
		return "", commonerrors.NewUnsupportedFormatError(contentType)
	}

	res, err := docconv.Convert(bytes.NewReader(data), mimeType, true)
	if err != nil {
		return "", commonerrors.NewUnsupportedFormatError(contentType)
	}

	text := strings.TrimSpace(res.Body)
	if len(text) < minExtractedLength {
		return "", commonerrors.NewEmptyDocumentError(len(text))
	}

	return text, nil
}

// ParseResume runs the structured-extraction model call over the document
// text and validates the result against the fixed schema.
func ParseResume(ctx context.Context, gen Generator, text string) (*models.ParsedCV, error) {
	output, err := gen.GenerateContent(ctx, buildExtractionPrompt(text))
	if err != nil {
		return nil, commonerrors.NewResumeParsingFailedError(err)
	}

	payload := llm.ExtractJSON(output)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(resumeSchema),
		gojsonschema.NewStringLoader(payload),
	)
	if err != nil {
		return nil, commonerrors.NewResumeParsingFailedError(err)
	}
	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, commonerrors.NewResumeParsingFailedError(fmt.Errorf("schema violations: %s", strings.Join(issues, "; ")))
	}

	var cv models.ParsedCV
	if err := json.Unmarshal([]byte(payload), &cv); err != nil {
		return nil, commonerrors.NewResumeParsingFailedError(err)
	}

	return &cv, nil
}

func buildExtractionPrompt(text string) string {
	if runes := []rune(text); len(runes) > 4000 {
		text = string(runes[:4000]) + " ..."
	}

	return fmt.Sprintf(`Tu es un expert en analyse de CV. Analyse ce CV et extrais les informations suivantes au format JSON strict.

CV :
%s

Réponds UNIQUEMENT avec un objet JSON valide, sans texte avant ou après :

{
  "name": "Nom complet du candidat ou null",
  "email": "Email si présent ou null",
  "phone": "Téléphone si présent ou null",
  "yearsOfExperience": nombre d'années d'expérience totale (entier) ou null,
  "currentPosition": "Poste actuel ou null",
  "currentCompany": "Entreprise actuelle ou null",
  "skills": ["Liste des compétences techniques"],
  "languages": ["Langues parlées avec niveaux"],
  "education": ["Diplômes obtenus"],
  "experience": [
    {
      "title": "Titre du poste",
      "company": "Entreprise",
      "duration": "Durée (ex: 2020-2023)",
      "description": "Description courte du poste"
    }
  ]
}

Si une information n'est pas présente, utilise null ou un tableau vide.`, text)
}

func normalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
