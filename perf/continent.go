package perf

// Continent is the client-side continent of a PathId, one of the seven
// enumerated values in the external interface (six inhabited continents plus
// an explicit Unknown for telemetry that does not resolve to one).
type Continent string

const (
	ContinentAfrica       Continent = "AF"
	ContinentAsia         Continent = "AS"
	ContinentEurope       Continent = "EU"
	ContinentNorthAmerica Continent = "NA"
	ContinentOceania      Continent = "OC"
	ContinentSouthAmerica Continent = "SA"
	ContinentUnknown      Continent = "Unknown"
)

// AllContinents enumerates every Continent value, used to size the
// behavior x continent traffic matrices in DBSummary.
var AllContinents = []Continent{
	ContinentAfrica, ContinentAsia, ContinentEurope, ContinentNorthAmerica,
	ContinentOceania, ContinentSouthAmerica, ContinentUnknown,
}

// ParseContinent maps a raw client_continent telemetry token onto a
// Continent, defaulting to Unknown rather than erroring: an unrecognized
// continent code is not one of the taxonomy's parse-error kinds, it is
// legitimately absent or future-proofed telemetry.
func ParseContinent(raw string) Continent {
	switch raw {
	case "AF", "AS", "EU", "NA", "OC", "SA":
		return Continent(raw)
	default:
		return ContinentUnknown
	}
}
