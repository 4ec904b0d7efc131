package domain

// SearchFilter narrows a similarity search.
type SearchFilter struct {
	// RefTypeBase restricts hits to a reference family ("document" or
	// "event"). Empty searches everything.
	RefTypeBase string

	// IncludeChunks controls whether chunk-level hits are returned in
	// addition to whole-entity hits. Ignored when RefTypeBase is empty.
	IncludeChunks bool

	// MinScore drops hits below this cosine similarity. Zero keeps all.
	MinScore float64
}

// SearchHit is one similarity search result, ordered by descending score.
type SearchHit struct {
	// RefID is the matched entity.
	RefID string

	// RefType is the matched reference type (may be a chunk variant).
	RefType string

	// Score is the cosine similarity in [-1, 1].
	Score float64
}
