package models

// Card is the normalized shape every catalog provider result is mapped into.
type Card struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Game   string  `json:"game"`
	Image  string  `json:"image,omitempty"`
	Price  float64 `json:"price"`
	Rarity string  `json:"rarity,omitempty"`
	Set    string  `json:"set,omitempty"`
}
