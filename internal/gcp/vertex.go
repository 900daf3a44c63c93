package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- Extractor Model Prompts ---
const ExtractorSystemPrompt = "You are a regulatory document extraction engine. You are given a full PDF of a SEBI Business Responsibility and Sustainability Report (BRSR). Accuracy and strict adherence to the output schema are of utmost importance."

const ExtractorUserPrompt = `You are given a full PDF of a SEBI Business Responsibility and Sustainability Report (BRSR).

Your task is to extract ONLY SECTION A - GENERAL DISCLOSURES.

Extract ONLY the exact fields shown in the Annexure II template below.
Ignore everything else. DO NOT extract Section B or Section C.

------------------------------------------
STRICT EXTRACTION RULES
------------------------------------------

1. Extract values exactly as written.
2. Do NOT summarize.
3. Do NOT infer.
4. Do NOT calculate derived fields.
5. If value not found:
  - Use "" for strings
  - Use null for numeric values
6. Preserve numeric values without formatting changes.
7. Do NOT change field names.
8. Do NOT add extra keys.
9. Output ONLY valid JSON.
10. Follow the example JSON structure exactly.

------------------------------------------
REQUIRED OUTPUT FORMAT (STRICT)
------------------------------------------

Return ONLY this JSON structure:

{
  "section": "A",
  "confidence_score": null,

  "entity_details": {
    "cin": "",
    "name": "",
    "year_of_incorporation": null,
    "registered_office_address": "",
    "corporate_office_address": "",
    "email": "",
    "telephone": "",
    "website": "",
    "financial_year": "",
    "stock_exchange_listing": "",
    "paid_up_capital": null,
    "contact_person_details": "",
    "reporting_boundary": "",
    "assurance_provider": "",
    "assurance_type": "",
    "sector": ""
  },

  "business_activity": {
    "main_activity_description": "",
    "description": "",
    "percent_of_turnover": null
  },

  "products_services": [
    {
      "product_service": "",
      "nic_code": "",
      "percent_of_total_turnover": null
    }
  ],

  "locations": {
    "national_plants": null,
    "national_offices": null,
    "international_plants": null,
    "international_offices": null
  },

  "markets_served": {
    "international_countries": null,
    "export_percent": null,
    "customers_brief": ""
  },

  "employees": {
    "employees": {
      "total_permanent": null,
      "permanent_male": null,
      "permanent_female": null,
      "other_than_permanent": null,
      "other_than_permanent_male": null,
      "other_than_permanent_female": null,
      "total_employees": null,
      "total_male": null,
      "total_female": null
    },
    "workers": {
      "total_permanent": null,
      "permanent_male": null,
      "permanent_female": null,
      "other_than_permanent": null,
      "other_than_permanent_male": null,
      "other_than_permanent_female": null,
      "total_workers": null,
      "total_male": null,
      "total_female": null
    },
    "differently_abled_employees": {
      "total_permanent": null,
      "permanent_male": null,
      "permanent_female": null,
      "other_than_permanent": null,
      "other_than_permanent_male": null,
      "other_than_permanent_female": null,
      "total_employees": null,
      "total_male": null,
      "total_female": null
    },
    "differently_abled_workers": {
      "total_permanent": null,
      "permanent_male": null,
      "permanent_female": null,
      "other_than_permanent": null,
      "other_than_permanent_male": null,
      "other_than_permanent_female": null,
      "total_workers": null,
      "total_male": null,
      "total_female": null
    }
  },

  "women_representation": {
    "board_of_directors_total": null,
    "board_of_directors_women": null,
    "kmp_total": null,
    "kmp_women": null
  },

  "turnover_rate": {
    "permanent_employees": {
      "male": null,
      "female": null,
      "total": null
    },
    "permanent_workers": {
      "male": null,
      "female": null,
      "total": null
    }
  },

  "holding_subsidiaries": [
    {
      "name": "",
      "type": "",
      "percent_shares_held": null
    }
  ],

  "csr": {
    "is_applicable": "",
    "turnover_inr_cr": null,
    "net_worth_inr_cr": null
  },

  "grievances": {
    "mechanism_in_place": {
      "communities": "Yes/No",
      "investors_other_than_shareholders": "Yes/No",
      "shareholders": "Yes/No",
      "employees_and_workers": "Yes/No",
      "customers": "Yes/No",
      "value_chain_partners": "Yes/No",
      "other_please_specify": "Yes/No"
    },
    "filed": {},
    "pending": {}
  },

  "material_risks_opportunities": {
    "environment": [
      {
        "material_issue": "",
        "risk_or_opportunity": "",
        "rationale": "",
        "financial_implications": ""
      }
    ],
    "social": [
      {
        "material_issue": "",
        "risk_or_opportunity": "",
        "rationale": "",
        "financial_implications": ""
      }
    ],
    "governance": [
      {
        "material_issue": "",
        "risk_or_opportunity": "",
        "rationale": "",
        "financial_implications": ""
      }
    ]
  }
}

------------------------------------------
CONFIDENCE SCORE CALCULATION
------------------------------------------

After extraction, calculate a confidence_score (0-100) based on:
- Count total required fields in the template: 103
- Count fields that have actual values from the PDF (not empty strings or null)
- If a field is legitimately not mentioned in the PDF, do NOT count it as missing
- confidence_score = (fields_with_values / total_fields) * 100
- Round to nearest integer
- Assign this score as "confidence_score" in the output

------------------------------------------
SECTOR CLASSIFICATION
------------------------------------------
- Classify the sector from business activity and products/services into one of these exact values only (Agriculture, Auto ancillary, Aviation, Building materials, Chemicals, Consumer durables, Dairy products, Defence, Diversified, Education & training, Energy, Engineering & capital goods, FMCG, Fertilizers, Financial services, Healthcare, IT, Logistics, Media & entertainment, Metals, Miscellaneous, NBFC, Packaging, Plastic pipes, Real estate, Retail, Services, Silver, Software services, Solar panel, Telecom, Textiles, Tourism & hospitality, Trading)
- Include it under "entity_details" as "sector"

------------------------------------------
IMPORTANT:
------------------------------------------
- Do not change key names.
- Do not add keys.
- Do not remove keys.
- Do not nest differently.
- Output ONLY valid JSON.`

// VertexClient holds the pre-configured generative model for extraction.
type VertexClient struct {
	ExtractorModel *genai.GenerativeModel
	baseClient     *genai.Client
}

// NewVertexClient creates a new client holding the extractor model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	extractorModel := baseClient.GenerativeModel(modelName)
	extractorModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ExtractorSystemPrompt)},
	}
	extractorModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. This is a critical setting for this model.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0), // Low temp for deterministic, structured output
	}
	extractorModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		ExtractorModel: extractorModel,
		baseClient:     baseClient,
	}, nil
}

// Generate sends the PDF bytes and the extraction prompt to Gemini and
// returns the raw response text.
func (c *VertexClient) Generate(ctx context.Context, fileBytes []byte, instructions string) (string, error) {
	filePart := genai.Blob{
		MIMEType: "application/pdf",
		Data:     fileBytes,
	}
	resp, err := c.ExtractorModel.GenerateContent(ctx, filePart, genai.Text(instructions))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	text := extractResponseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}
	return text, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// extractResponseText concatenates all text parts of the first candidate.
func extractResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}
