package model

// LocationBucket maps free-text locations to a named map point. A location
// belongs to the bucket when any keyword appears in it as a whole word,
// ignoring case.
type LocationBucket struct {
	Name      string   `json:"name" toml:"name" yaml:"name"`
	Keywords  []string `json:"keywords" toml:"keywords" yaml:"keywords"`
	Latitude  float64  `json:"latitude" toml:"latitude" yaml:"latitude"`
	Longitude float64  `json:"longitude" toml:"longitude" yaml:"longitude"`
}

// CategoryRule describes a category by the words that signal it.
type CategoryRule struct {
	Name     string   `json:"name" toml:"name" yaml:"name"`
	Keywords []string `json:"keywords" toml:"keywords" yaml:"keywords"`
}

// HookRule runs a shell command when a bus message arrives. On names the
// topic with or without the "campusevents." prefix, e.g. "run.completed".
type HookRule struct {
	Name           string `json:"name" toml:"name" yaml:"name"`
	On             string `json:"on" toml:"on" yaml:"on"`
	Command        string `json:"command" toml:"command" yaml:"command"`
	Dir            string `json:"dir,omitempty" toml:"dir" yaml:"dir"`
	Timeout        int    `json:"timeout,omitempty" toml:"timeout" yaml:"timeout"` // seconds
	OnFailure      string `json:"on_failure,omitempty" toml:"on_failure" yaml:"on_failure"`
	OnlyWhenStored bool   `json:"only_when_stored,omitempty" toml:"only_when_stored" yaml:"only_when_stored"`
}

// Campus coordinates shared by several buckets.
const (
	keefeLat, keefeLng       = 42.37141504481807, -72.51479991450528
	sciLat, sciLng           = 42.37105378715133, -72.51334790776447
	gymLat, gymLng           = 42.368819594097864, -72.5188658145099
	converseLat, converseLng = 42.37243680844771, -72.518433147017
)

// DefaultLocationBuckets returns the built-in campus map. Buckets are
// matched in order, so more specific keywords come before general ones.
func DefaultLocationBuckets() []LocationBucket {
	return []LocationBucket{
		{Name: "Keefe Campus Center", Keywords: []string{"Keefe", "Queer", "Multicultural", "Friedmann"}, Latitude: keefeLat, Longitude: keefeLng},
		{Name: "Ford Hall", Keywords: []string{"Ford"}, Latitude: 42.36923506234738, Longitude: -72.51529130962976},
		{Name: "Science Center", Keywords: []string{"SCCE", "Science Center"}, Latitude: sciLat, Longitude: sciLng},
		{Name: "Chapin Hall", Keywords: []string{"Chapin"}, Latitude: 42.371771820543486, Longitude: -72.51572746604714},
		{Name: "Alumni Gym", Keywords: []string{"Middleton Gym"}, Latitude: gymLat, Longitude: gymLng},
		{Name: "Alumni Gymnasium", Keywords: []string{"Gym", "Cage", "Lefrak"}, Latitude: gymLat, Longitude: gymLng},
		{Name: "Frost Library", Keywords: []string{"Frost"}, Latitude: 42.37183195277655, Longitude: -72.51699336789369},
		{Name: "Beneski Museum of Natural History", Keywords: []string{"Paino"}, Latitude: 42.37209277500926, Longitude: -72.51422459549485},
		{Name: "Powerhouse", Keywords: []string{"Powerhouse"}, Latitude: 42.372109655195466, Longitude: -72.51309270030836},
		{Name: "Converse Hall", Keywords: []string{"Converse", "Assembly Room", "Red Room"}, Latitude: converseLat, Longitude: converseLng},
	}
}

// DefaultCategoryRules returns the built-in category vocabulary.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Name: "Social", Keywords: []string{"social", "gathering", "party", "meetup", "networking", "friendship", "community", "hangout", "celebration"}},
		{Name: "Group Business", Keywords: []string{"business", "meeting", "organization", "planning", "committee", "board", "administrative", "professional"}},
		{Name: "Athletics", Keywords: []string{"sports", "game", "match", "competition", "athletic", "fitness", "exercise", "tournament", "physical", "team"}},
		{Name: "Meeting", Keywords: []string{"meeting", "discussion", "forum", "gathering", "assembly", "conference", "consultation"}},
		{Name: "Community Service", Keywords: []string{"volunteer", "service", "community", "help", "charity", "outreach", "support", "donation", "drive"}},
		{Name: "Arts", Keywords: []string{"art", "exhibition", "gallery", "creative", "visual", "performance", "theater", "theatre", "display"}},
		{Name: "Concert", Keywords: []string{"music", "concert", "performance", "band", "orchestra", "choir", "singing", "musical", "live"}},
		{Name: "Arts and Craft", Keywords: []string{"crafts", "making", "creating", "diy", "hands-on", "artistic", "craft", "project", "workshop", "art", "supplies"}},
		{Name: "Workshop", Keywords: []string{"workshop", "training", "seminar", "learning", "skills", "development", "hands-on", "practical", "education"}},
		{Name: "Cultural", Keywords: []string{"cultural", "diversity", "international", "multicultural", "heritage", "tradition", "celebration", "ethnic"}},
		{Name: "Thoughtful Learning", Keywords: []string{"lecture", "academic", "learning", "educational", "intellectual", "discussion", "research", "scholarly"}},
		{Name: "Spirituality", Keywords: []string{"spiritual", "religious", "meditation", "faith", "worship", "prayer", "mindfulness", "wellness"}},
	}
}
