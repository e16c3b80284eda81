package models

// ModelInfo describes a known Mistral model.
type ModelInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	MaxTokens   int    `json:"max_tokens"`
}

// KnownModels lists the Mistral models the engine can evaluate, in display
// order. Requests naming a model outside this list are rejected before any
// provider call.
var KnownModels = []ModelInfo{
	{ID: "mistral-tiny", Description: "Smallest and fastest, for simple tasks", MaxTokens: 4096},
	{ID: "mistral-small-latest", Description: "Balanced speed and capability", MaxTokens: 4096},
	{ID: "mistral-medium-latest", Description: "Stronger reasoning at moderate cost", MaxTokens: 4096},
	{ID: "mistral-large-latest", Description: "Most capable, preferred judge model", MaxTokens: 4096},
	{ID: "open-mistral-7b", Description: "Open-weights 7B model", MaxTokens: 4096},
	{ID: "open-mixtral-8x7b", Description: "Open-weights sparse mixture 8x7B", MaxTokens: 4096},
	{ID: "open-mixtral-8x22b", Description: "Open-weights sparse mixture 8x22B", MaxTokens: 4096},
	{ID: "codestral-latest", Description: "Code generation and explanation", MaxTokens: 4096},
}

// LookupModel returns the registry entry for id, if known.
func LookupModel(id string) (ModelInfo, bool) {
	for _, m := range KnownModels {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}
