package models

// Side определяет половину сетки double elimination.
type Side string

const (
	SideWinners Side = "winners"
	SideLosers  Side = "losers"
	SideFinals  Side = "finals"
)

// Slot указывает колонку матча, в которую попадает команда.
type Slot string

const (
	SlotTeam1 Slot = "team1"
	SlotTeam2 Slot = "team2"
)

// BracketTemplate — одна строка шаблона сетки для заданного размера.
// Шаблон неизменяем: повторная генерация для того же размера обязана
// давать идентичные строки.
type BracketTemplate struct {
	ID          int    `json:"id" db:"id"`
	BracketSize int    `json:"bracket_size" db:"bracket_size"`
	GameNumber  int    `json:"game_number" db:"game_number"`
	RoundName   string `json:"round_name" db:"round_name"`
	RoundNumber int    `json:"round_number" db:"round_number"`
	Side        Side   `json:"side" db:"side"`

	// Источники слотов: seed:N, winner:G или loser:G.
	Team1Source string `json:"team1_source" db:"team1_source"`
	Team2Source string `json:"team2_source" db:"team2_source"`

	// Куда уходит победитель/проигравший (номер игры в том же шаблоне).
	WinnerAdvancesTo *int  `json:"winner_advances_to,omitempty" db:"winner_advances_to"`
	WinnerSlot       *Slot `json:"winner_slot,omitempty" db:"winner_slot"`
	LoserAdvancesTo  *int  `json:"loser_advances_to,omitempty" db:"loser_advances_to"`
	LoserSlot        *Slot `json:"loser_slot,omitempty" db:"loser_slot"`

	IsChampionship bool `json:"is_championship" db:"is_championship"`
	IsGrandFinal   bool `json:"is_grand_final" db:"is_grand_final"`
	IsResetGame    bool `json:"is_reset_game" db:"is_reset_game"`
}
