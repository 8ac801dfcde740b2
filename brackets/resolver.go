package brackets

import (
	"github.com/bracketlab/bracket-engine/models"
)

// ResolveStats — итог одного прогона резолвера до неподвижной точки.
type ResolveStats struct {
	SlotsFilled         int  `json:"slots_filled"`
	ByeGamesResolved    int  `json:"bye_games_resolved"`
	ReadyGamesUpdated   int  `json:"ready_games_updated"`
	Passes              int  `json:"passes"`
	IterationCeilingHit bool `json:"iteration_ceiling_hit"`

	// Команда, выигравшая reset-игру в этом прогоне, если сетка закрылась.
	ChampionTeamID *int `json:"champion_team_id,omitempty"`
}

type resolution int

const (
	resolutionPending resolution = iota // источник ещё не определён
	resolutionTeam
	resolutionImpossible // соперник структурно невозможен
)

// Resolver прогоняет игры одной сетки до неподвижной точки: заполняет
// слоты, чьи источники уже определены, закрывает bye-игры и продвигает
// игры с двумя заполненными слотами в ready. Игры мутируются на месте;
// номера изменённых игр копятся в журнале для персистенции.
type Resolver struct {
	games   map[int]*models.BracketGame
	ordered []int
	entries map[int]*models.BracketEntry // по позиции посева
	changed map[int]bool
}

func NewResolver(games []*models.BracketGame, entries []*models.BracketEntry) *Resolver {
	r := &Resolver{
		games:   make(map[int]*models.BracketGame, len(games)),
		entries: make(map[int]*models.BracketEntry, len(entries)),
		changed: make(map[int]bool),
	}
	for _, g := range games {
		r.games[g.GameNumber] = g
		r.ordered = append(r.ordered, g.GameNumber)
	}
	for _, e := range entries {
		r.entries[e.SeedPosition] = e
	}
	return r
}

// ChangedGames возвращает номера игр, изменённых последним Run.
func (r *Resolver) ChangedGames() []int {
	nums := make([]int, 0, len(r.changed))
	for _, n := range r.ordered {
		if r.changed[n] {
			nums = append(nums, n)
		}
	}
	return nums
}

// Run повторяет проход по играм, пока проход вносит изменения. Потолок
// итераций масштабируется с числом игр и существует только как защита
// от дефектного шаблона: его достижение — сигнал целостности, не ошибка.
func (r *Resolver) Run() ResolveStats {
	var stats ResolveStats
	maxPasses := 2*len(r.games) + 2

	for {
		stats.Passes++
		if !r.pass(&stats) {
			break
		}
		if stats.Passes >= maxPasses {
			stats.IterationCeilingHit = true
			break
		}
	}

	// Сетка закрыта, когда решена игра, из которой некуда продвигаться.
	for _, num := range r.ordered {
		g := r.games[num]
		if g.WinnerAdvancesTo == nil && (g.IsResetGame || g.IsChampionship) && g.Decided() && g.WinnerID != nil {
			stats.ChampionTeamID = g.WinnerID
		}
	}
	return stats
}

func (r *Resolver) pass(stats *ResolveStats) bool {
	changed := false
	for _, num := range r.ordered {
		g := r.games[num]
		if g.Decided() {
			continue
		}

		res1, team1 := r.resolveSlot(g, models.SlotTeam1)
		if res1 == resolutionTeam && g.Team1ID == nil {
			g.Team1ID = team1
			r.markChanged(g)
			stats.SlotsFilled++
			changed = true
		}

		res2, team2 := r.resolveSlot(g, models.SlotTeam2)
		if res2 == resolutionTeam && g.Team2ID == nil {
			g.Team2ID = team2
			r.markChanged(g)
			stats.SlotsFilled++
			changed = true
		}

		switch {
		case res1 == resolutionTeam && res2 == resolutionImpossible:
			r.resolveBye(g, g.Team1ID, stats)
			changed = true
		case res2 == resolutionTeam && res1 == resolutionImpossible:
			r.resolveBye(g, g.Team2ID, stats)
			changed = true
		case res1 == resolutionImpossible && res2 == resolutionImpossible:
			// Обе стороны невозможны: закрываем без победителя, чтобы
			// невозможность распространялась дальше по сетке.
			r.resolveBye(g, nil, stats)
			changed = true
		case g.Status == models.GameStatusPending && g.Team1ID != nil && g.Team2ID != nil:
			g.Status = models.GameStatusReady
			r.markChanged(g)
			stats.ReadyGamesUpdated++
			changed = true
		}
	}
	return changed
}

func (r *Resolver) resolveSlot(g *models.BracketGame, slot models.Slot) (resolution, *int) {
	ref, err := ParseSource(g.SourceOfSlot(slot))
	if err != nil {
		return resolutionPending, nil
	}

	switch ref.Kind {
	case SourceSeed:
		entry, ok := r.entries[ref.Ref]
		if !ok || entry.IsBye || entry.TeamID == nil {
			return resolutionImpossible, nil
		}
		return resolutionTeam, entry.TeamID

	case SourceWinner:
		upstream, ok := r.games[ref.Ref]
		if !ok || !upstream.Decided() {
			return resolutionPending, nil
		}
		if upstream.WinnerID == nil {
			// Bye без победителя: невозможность идёт дальше.
			return resolutionImpossible, nil
		}
		return resolutionTeam, upstream.WinnerID

	case SourceLoser:
		upstream, ok := r.games[ref.Ref]
		if !ok || !upstream.Decided() {
			return resolutionPending, nil
		}
		if upstream.Status == models.GameStatusBye {
			// У bye-игры нет проигравшего.
			return resolutionImpossible, nil
		}
		if g.IsResetGame && r.wonFromWinnersSide(upstream) {
			// Чемпионский reset: команда верхней сетки выиграла гранд-финал
			// напрямую — переигровка не нужна, слот проигравшего невозможен.
			return resolutionImpossible, nil
		}
		if upstream.LoserID == nil {
			return resolutionImpossible, nil
		}
		return resolutionTeam, upstream.LoserID
	}
	return resolutionPending, nil
}

// wonFromWinnersSide проверяет, занял ли победитель гранд-финала слот,
// который питается от игры верхней сетки.
func (r *Resolver) wonFromWinnersSide(gf *models.BracketGame) bool {
	if gf.WinnerID == nil {
		return false
	}
	for _, slot := range []models.Slot{models.SlotTeam1, models.SlotTeam2} {
		team := gf.TeamInSlot(slot)
		if team == nil || *team != *gf.WinnerID {
			continue
		}
		ref, err := ParseSource(gf.SourceOfSlot(slot))
		if err != nil || ref.Kind != SourceWinner {
			continue
		}
		if feeder, ok := r.games[ref.Ref]; ok && feeder.Side == models.SideWinners {
			return true
		}
	}
	return false
}

func (r *Resolver) resolveBye(g *models.BracketGame, winner *int, stats *ResolveStats) {
	g.Status = models.GameStatusBye
	g.WinnerID = winner
	g.LoserID = nil
	r.markChanged(g)
	stats.ByeGamesResolved++

	if winner == nil {
		return
	}
	// Победитель bye продвигается сразу; проигравшего у bye-игры нет.
	if g.WinnerAdvancesTo != nil && g.WinnerSlot != nil {
		target, ok := r.games[*g.WinnerAdvancesTo]
		if ok && target.TeamInSlot(*g.WinnerSlot) == nil {
			if *g.WinnerSlot == models.SlotTeam1 {
				target.Team1ID = winner
			} else {
				target.Team2ID = winner
			}
			r.markChanged(target)
			stats.SlotsFilled++
		}
	}
}

func (r *Resolver) markChanged(g *models.BracketGame) {
	r.changed[g.GameNumber] = true
}
