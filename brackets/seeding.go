package brackets

import (
	"errors"
	"fmt"

	"github.com/bracketlab/bracket-engine/models"
)

var (
	ErrNoTeams      = errors.New("cannot seed a bracket with zero teams")
	ErrTooManyTeams = errors.New("team count exceeds bracket size")
)

// SeedingOrder возвращает стандартный зеркальный порядок посева: первый
// и последний посев на противоположных краях, так что без апсетов два
// верхних посева могут встретиться только в финале. Для размера 8 это
// 1,8,4,5,2,7,3,6.
func SeedingOrder(size int) ([]int, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: seeding order requires a power of two, got %d", ErrUnsupportedSize, size)
	}

	order := []int{1}
	for len(order) < size {
		mirror := len(order)*2 + 1
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, mirror-s)
		}
		order = next
	}
	return order, nil
}

// PlaceSeeds раскладывает отсортированный список команд (лучшая первой)
// по позициям посева 1..size. Позиции сверх числа команд помечаются bye.
// Зеркальное спаривание позиций зашито в seed:N источниках шаблона, так
// что позиция посева здесь совпадает с рангом.
func PlaceSeeds(bracketID int, rankedTeams []models.RankedTeam, size int) ([]models.BracketEntry, error) {
	if len(rankedTeams) == 0 {
		return nil, ErrNoTeams
	}
	if len(rankedTeams) > size {
		return nil, fmt.Errorf("%w: %d teams for size %d", ErrTooManyTeams, len(rankedTeams), size)
	}

	entries := make([]models.BracketEntry, 0, size)
	for pos := 1; pos <= size; pos++ {
		entry := models.BracketEntry{
			BracketID:    bracketID,
			SeedPosition: pos,
		}
		if pos <= len(rankedTeams) {
			teamID := rankedTeams[pos-1].TeamID
			entry.TeamID = &teamID
		} else {
			entry.IsBye = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
