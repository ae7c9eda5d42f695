package enginedto

// EngineRef is a single entry of the backend's engine directory.
type EngineRef struct {
	EngineID      string `json:"engine_id"`
	Name          string `json:"name"`
	EntrypointURL string `json:"entrypoint_url"`
}

// EngineDirectory is the response of the directory endpoint (GET on the base URL).
type EngineDirectory struct {
	Engines []EngineRef `json:"engines"`
}

// EngineVariant is one playable checkpoint of an engine. GameURL is the
// "compute next move" endpoint for this variant.
type EngineVariant struct {
	VariantID string `json:"variant_id"`
	Name      string `json:"name"`
	GameURL   string `json:"game_url"`
}

// EngineDescription is the response of an engine's entrypoint URL.
type EngineDescription struct {
	EngineID             string          `json:"engine_id"`
	Name                 string          `json:"name"`
	TextDescription      string          `json:"text_description"`
	Variants             []EngineVariant `json:"variants"`
	BestAvailableVariant EngineVariant   `json:"best_available_variant"`
}
