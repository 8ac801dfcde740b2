package brackets

import (
	"sort"

	"github.com/bracketlab/bracket-engine/models"
)

// AffectedGame описывает одну игру, задетую откатом результата: какие
// слоты потеряли участника и потерял ли силу записанный результат.
type AffectedGame struct {
	GameNumber     int  `json:"game_number"`
	GameID         int  `json:"game_id"`
	Team1Affected  bool `json:"team1_affected"`
	Team2Affected  bool `json:"team2_affected"`
	ResultAffected bool `json:"result_affected"`
}

// ComputeCascade обходит сетку вперёд по рёбрам продвижения от откатываемой
// игры и собирает все игры, чьи участники или результат стали невалидны.
// Обход идёт через весь достижимый подграф независимо от задетости
// промежуточных игр: более поздняя ветка может зависеть от испорченной
// игры другим путём. Множество «испорченных» номеров растёт по мере
// обхода, поэтому достижимые игры переоцениваются до стабилизации.
func ComputeCascade(games []*models.BracketGame, startGameNumber int) []AffectedGame {
	byNum := make(map[int]*models.BracketGame, len(games))
	for _, g := range games {
		byNum[g.GameNumber] = g
	}
	start, ok := byNum[startGameNumber]
	if !ok {
		return nil
	}

	// Достижимое множество: BFS по рёбрам winner/loser продвижения.
	reachable := make(map[int]bool)
	queue := []*models.BracketGame{start}
	visited := map[int]bool{startGameNumber: true}
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		for _, next := range []*int{g.WinnerAdvancesTo, g.LoserAdvancesTo} {
			if next == nil || visited[*next] {
				continue
			}
			visited[*next] = true
			target, ok := byNum[*next]
			if !ok {
				continue
			}
			reachable[*next] = true
			queue = append(queue, target)
		}
	}

	order := make([]int, 0, len(reachable))
	for n := range reachable {
		order = append(order, n)
	}
	sort.Ints(order)

	corrupted := map[int]bool{startGameNumber: true}
	affected := make(map[int]*AffectedGame)

	// Номера игр топологичны для сгенерированных шаблонов, но внешние
	// шаблоны этого не гарантируют, поэтому крутимся до неподвижной точки.
	for {
		grew := false
		for _, num := range order {
			g := byNum[num]
			team1Hit := slotAffected(g, models.SlotTeam1, byNum, corrupted)
			team2Hit := slotAffected(g, models.SlotTeam2, byNum, corrupted)
			if !team1Hit && !team2Hit {
				continue
			}

			entry, seen := affected[num]
			if !seen {
				entry = &AffectedGame{GameNumber: num, GameID: g.ID}
				affected[num] = entry
			}
			entry.Team1Affected = entry.Team1Affected || team1Hit
			entry.Team2Affected = entry.Team2Affected || team2Hit
			// Неверные участники обесценивают и сам результат.
			if g.WinnerID != nil {
				entry.ResultAffected = true
			}
			if !corrupted[num] {
				corrupted[num] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	report := make([]AffectedGame, 0, len(affected))
	for _, num := range order {
		if a, ok := affected[num]; ok {
			report = append(report, *a)
		}
	}
	return report
}

// slotAffected: слот задет, если его источник ссылается на испорченную
// игру (избыточно проверяется и обратное ребро продвижения) и в слоте
// сейчас есть команда, которую нужно убрать.
func slotAffected(g *models.BracketGame, slot models.Slot, byNum map[int]*models.BracketGame, corrupted map[int]bool) bool {
	if g.TeamInSlot(slot) == nil {
		return false
	}
	if ref, err := ParseSource(g.SourceOfSlot(slot)); err == nil {
		if (ref.Kind == SourceWinner || ref.Kind == SourceLoser) && corrupted[ref.Ref] {
			return true
		}
	}
	for num := range corrupted {
		src, ok := byNum[num]
		if !ok {
			continue
		}
		if src.WinnerAdvancesTo != nil && *src.WinnerAdvancesTo == g.GameNumber && src.WinnerSlot != nil && *src.WinnerSlot == slot {
			return true
		}
		if src.LoserAdvancesTo != nil && *src.LoserAdvancesTo == g.GameNumber && src.LoserSlot != nil && *src.LoserSlot == slot {
			return true
		}
	}
	return false
}
