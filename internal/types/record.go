package types

// AttributeKeys lists the six species attributes in display order.
var AttributeKeys = []string{
	"dexterity",
	"knowledge",
	"mechanical",
	"perception",
	"strength",
	"technical",
}

// Entry is a named description line, used for abilities and story factors.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DiceRange is a species attribute's minimum and maximum dice.
type DiceRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// SpeciesStats holds a species' game statistics.
type SpeciesStats struct {
	AttributeDice string                `json:"attributeDice,omitempty"`
	Attributes    map[string]*DiceRange `json:"attributes,omitempty"`
	Move          string                `json:"move,omitempty"`
	Size          string                `json:"size,omitempty"`
}

// Languages describes a species' native language.
type Languages struct {
	Native      string `json:"native"`
	Description string `json:"description"`
}

// SpeciesRecord is the normalized catalog entry for one species.
type SpeciesRecord struct {
	Slug                string        `json:"slug"`
	Name                string        `json:"name"`
	Plural              string        `json:"plural,omitempty"`
	Description         string        `json:"description,omitempty"`
	Personality         string        `json:"personality,omitempty"`
	PhysicalDescription string        `json:"physicalDescription,omitempty"`
	Homeworld           string        `json:"homeworld,omitempty"`
	Languages           *Languages    `json:"languages,omitempty"`
	ExampleNames        []string      `json:"exampleNames,omitempty"`
	Adventurers         string        `json:"adventurers,omitempty"`
	Stats               *SpeciesStats `json:"stats,omitempty"`
	SpecialAbilities    []Entry       `json:"specialAbilities,omitempty"`
	StoryFactors        []Entry       `json:"storyFactors,omitempty"`
	Notes               string        `json:"notes,omitempty"`
	Sources             []string      `json:"sources,omitempty"`
	SearchTokens        []string      `json:"searchTokens,omitempty"`
	SearchName          string        `json:"searchName,omitempty"`
	SortName            string        `json:"sortName,omitempty"`
	HasImage            bool          `json:"hasImage"`
	ImagePath           string        `json:"imagePath,omitempty"`
	ImageFilename       string        `json:"imageFilename,omitempty"`
	SourcePage          *PageRef      `json:"sourcePage,omitempty"`
}

// Sensors is a starship's four sensor ranges.
type Sensors struct {
	Passive string `json:"passive,omitempty"`
	Scan    string `json:"scan,omitempty"`
	Search  string `json:"search,omitempty"`
	Focus   string `json:"focus,omitempty"`
}

// Weapon is one weapon mount on a starship.
type Weapon struct {
	Name            string `json:"name"`
	FireArc         string `json:"fireArc,omitempty"`
	Scale           string `json:"scale,omitempty"`
	Skill           string `json:"skill,omitempty"`
	FireControl     string `json:"fireControl,omitempty"`
	SpaceRange      string `json:"spaceRange,omitempty"`
	AtmosphereRange string `json:"atmosphereRange,omitempty"`
	Damage          string `json:"damage,omitempty"`
}

// StarshipRecord is the normalized catalog entry for one ship or variant.
type StarshipRecord struct {
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Craft           string   `json:"craft,omitempty"`
	Category        string   `json:"category"`
	Type            string   `json:"type,omitempty"`
	Affiliation     string   `json:"affiliation,omitempty"`
	Scale           string   `json:"scale,omitempty"`
	Length          string   `json:"length,omitempty"`
	Skill           string   `json:"skill,omitempty"`
	Crew            string   `json:"crew,omitempty"`
	CrewSkill       string   `json:"crewSkill,omitempty"`
	Passengers      string   `json:"passengers,omitempty"`
	CargoCapacity   string   `json:"cargoCapacity,omitempty"`
	Consumables     string   `json:"consumables,omitempty"`
	Cost            string   `json:"cost,omitempty"`
	Hyperdrive      string   `json:"hyperdrive,omitempty"`
	NavComputer     string   `json:"navComputer,omitempty"`
	Maneuverability string   `json:"maneuverability,omitempty"`
	Space           string   `json:"space,omitempty"`
	Atmosphere      string   `json:"atmosphere,omitempty"`
	Hull            string   `json:"hull,omitempty"`
	Shields         string   `json:"shields,omitempty"`
	Weapons         []Weapon `json:"weapons,omitempty"`
	Sensors         *Sensors `json:"sensors,omitempty"`
	Description     string   `json:"description,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	ImageFilename   string   `json:"imageFilename,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	Parent          string   `json:"parent,omitempty"`
	VariantOf       string   `json:"variantOf,omitempty"`
	IsVariant       bool     `json:"isVariant"`
	Sources         []string `json:"sources,omitempty"`
	SearchTokens    []string `json:"searchTokens,omitempty"`
	SortName        string   `json:"sortName,omitempty"`
	PageID          int64    `json:"pageId,omitempty"`
	RevisionID      int64    `json:"revisionId,omitempty"`
	SourcePage      *PageRef `json:"sourcePage,omitempty"`
}

// VariantFamily groups the records built from one family page.
type VariantFamily struct {
	ParentName string
	BaseRecord *StarshipRecord
	Variants   []*StarshipRecord
}
