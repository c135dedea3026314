package core

// CategoryTotal represents spend aggregated by category name.
type CategoryTotal struct {
	Category Category
	Total    float64
	Count    int64
}

// OwnerSummary is a compact precomputed overview of one account's spend.
type OwnerSummary struct {
	OwnerID    int64
	Total      float64
	ByCategory []CategoryTotal
}
