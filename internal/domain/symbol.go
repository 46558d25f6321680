package domain

// Symbol is a tradable instrument descriptor supplied by the venue on
// connect. Read-only reference data; the venue is the source of truth.
type Symbol struct {
	Code        string // venue identifier, e.g. "R_100"
	DisplayName string
	Market      string // market group, e.g. "synthetic_index"
	Submarket   string
	IsOpen      bool
}

// ContractType identifies one tradable contract class for a symbol,
// e.g. CALL/PUT (higher/lower), MULTUP/MULTDOWN, ONETOUCH/NOTOUCH.
type ContractType struct {
	Code        string // venue code sent in proposal requests, e.g. "CALL"
	DisplayName string
	Category    string // venue category, e.g. "callput", "multiplier"
	Sentiment   string // "up" / "down" where the venue provides it
}

// ContractCatalog is the set of contract types legally tradable for one
// symbol. It is fetched fresh on every symbol change and replaced
// wholesale, never merged.
type ContractCatalog struct {
	Symbol    string
	Contracts []ContractType
}

// Has reports whether the catalog contains the given contract type code.
func (c *ContractCatalog) Has(code string) bool {
	for _, ct := range c.Contracts {
		if ct.Code == code {
			return true
		}
	}
	return false
}
