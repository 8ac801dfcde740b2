package brackets

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/bracketlab/bracket-engine/models"
)

var ErrUnsupportedSize = errors.New("unsupported bracket size")

var supportedSizes = map[int]bool{4: true, 8: true, 16: true, 32: true, 64: true}

// SupportedSize сообщает, умеет ли генератор строить шаблон такого размера.
// Нестандартные размеры допускаются системой, но их шаблоны должны быть
// заведены заранее — генератор их не синтезирует.
func SupportedSize(size int) bool {
	return supportedSizes[size]
}

// GenerateTopology строит полный шаблон double elimination сетки:
// верхнюю сетку, нижнюю сетку, гранд-финал и reset-игру. Номера игр
// сквозные и непрерывные с единицы; вызов для одного размера всегда
// даёт идентичные строки.
func GenerateTopology(size int) ([]models.BracketTemplate, error) {
	if !SupportedSize(size) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSize, size)
	}

	n := bits.Len(uint(size)) - 1 // число раундов верхней сетки
	order, err := SeedingOrder(size)
	if err != nil {
		return nil, err
	}

	num := 0
	next := func() int { num++; return num }

	// Верхняя сетка: раунд r содержит size/2^r игр.
	wb := make([][]int, n+1)
	for r := 1; r <= n; r++ {
		wb[r] = make([]int, size>>uint(r))
		for i := range wb[r] {
			wb[r][i] = next()
		}
	}

	// Нижняя сетка: раунды идут парами. Нечётный раунд сводит выживших
	// нижней сетки между собой, чётный — против выбывших из верхней.
	lbRounds := 2 * (n - 1)
	lb := make([][]int, lbRounds+1)
	for l := 1; l <= lbRounds; l++ {
		lb[l] = make([]int, size>>uint((l+1)/2+1))
		for i := range lb[l] {
			lb[l][i] = next()
		}
	}

	gf := next()
	reset := next()

	rowsByNum := make(map[int]*models.BracketTemplate, num)
	add := func(game int, side models.Side, round int, name, src1, src2 string) *models.BracketTemplate {
		row := &models.BracketTemplate{
			BracketSize: size,
			GameNumber:  game,
			RoundName:   name,
			RoundNumber: round,
			Side:        side,
			Team1Source: src1,
			Team2Source: src2,
		}
		rowsByNum[game] = row
		return row
	}

	for r := 1; r <= n; r++ {
		for i, g := range wb[r] {
			var src1, src2 string
			if r == 1 {
				src1 = seedSource(order[2*i])
				src2 = seedSource(order[2*i+1])
			} else {
				src1 = winnerSource(wb[r-1][2*i])
				src2 = winnerSource(wb[r-1][2*i+1])
			}
			add(g, models.SideWinners, r, winnersRoundName(r, n), src1, src2)
		}
	}

	for l := 1; l <= lbRounds; l++ {
		for i, g := range lb[l] {
			var src1, src2 string
			switch {
			case l == 1:
				src1 = loserSource(wb[1][2*i])
				src2 = loserSource(wb[1][2*i+1])
			case l%2 == 0:
				// Выбывший из верхней сетки падает сюда. На чётных раундах
				// верхней сетки порядок разворачивается, чтобы отодвинуть
				// повторные встречи.
				wbRound := l/2 + 1
				j := i
				if wbRound%2 == 0 {
					j = len(lb[l]) - 1 - i
				}
				src1 = loserSource(wb[wbRound][j])
				src2 = winnerSource(lb[l-1][i])
			default:
				src1 = winnerSource(lb[l-1][2*i])
				src2 = winnerSource(lb[l-1][2*i+1])
			}
			add(g, models.SideLosers, l, losersRoundName(l, lbRounds), src1, src2)
		}
	}

	gfRow := add(gf, models.SideFinals, 1, "Grand Final", winnerSource(wb[n][0]), winnerSource(lb[lbRounds][0]))
	gfRow.IsChampionship = true
	gfRow.IsGrandFinal = true

	resetRow := add(reset, models.SideFinals, 2, "Grand Final Reset", winnerSource(gf), loserSource(gf))
	resetRow.IsResetGame = true

	// Указатели продвижения выводятся из источников: если слот игры T
	// питается от winner:G, то победитель G уходит в T в этот слот.
	// Каждую игру в качестве источника использует не более одного
	// winner-потребителя и одного loser-потребителя.
	games := make([]int, 0, len(rowsByNum))
	for g := range rowsByNum {
		games = append(games, g)
	}
	sort.Ints(games)

	for _, g := range games {
		row := rowsByNum[g]
		for _, slot := range []models.Slot{models.SlotTeam1, models.SlotTeam2} {
			expr := row.Team1Source
			if slot == models.SlotTeam2 {
				expr = row.Team2Source
			}
			ref, err := ParseSource(expr)
			if err != nil {
				return nil, fmt.Errorf("template for size %d: %w", size, err)
			}
			if ref.Kind == SourceSeed {
				continue
			}
			upstream, ok := rowsByNum[ref.Ref]
			if !ok {
				return nil, fmt.Errorf("template for size %d: game %d references missing game %d", size, g, ref.Ref)
			}
			target := row.GameNumber
			targetSlot := slot
			if ref.Kind == SourceWinner {
				upstream.WinnerAdvancesTo = &target
				upstream.WinnerSlot = &targetSlot
			} else {
				upstream.LoserAdvancesTo = &target
				upstream.LoserSlot = &targetSlot
			}
		}
	}

	rows := make([]models.BracketTemplate, 0, len(games))
	for _, g := range games {
		rows = append(rows, *rowsByNum[g])
	}
	return rows, nil
}

func winnersRoundName(r, total int) string {
	switch r {
	case total:
		return "Winners Final"
	case total - 1:
		return "Winners Semifinal"
	default:
		return fmt.Sprintf("Winners Round %d", r)
	}
}

func losersRoundName(l, total int) string {
	if l == total {
		return "Losers Final"
	}
	return fmt.Sprintf("Losers Round %d", l)
}
