package replay

// GameSpec describes a reproducible game: seeds, board parameters and the
// clicks to play.
type GameSpec struct {
	Size      int         `json:"size"`
	BombCount int         `json:"bomb_count"`
	Seed      int64       `json:"seed"`
	CoinSeed  int64       `json:"coin_seed,omitempty"`
	Oracle    *OracleSpec `json:"oracle,omitempty"`
	Clicks    []ClickSpec `json:"clicks"`
}

type OracleSpec struct {
	Trials      int      `json:"trials,omitempty"`
	ExplodeBias *float64 `json:"explode_bias,omitempty"`
	GroupBias   *float64 `json:"group_bias,omitempty"`
	Schedule    string   `json:"schedule,omitempty"`
}

type ClickSpec struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Tape struct {
	TapeVersion int     `json:"tape_version"`
	GameID      string  `json:"game_id"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type        string         `json:"type"`
	Seq         uint64         `json:"seq"`
	Value       map[string]any `json:"value,omitempty"`
	EnvelopeB64 string         `json:"envelope_b64,omitempty"`
}
