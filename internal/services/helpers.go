package services

import (
	"sort"
	"strings"

	"github.com/charlesng35/opsdeck/internal/models"
)

func sortTeamsByName(teams []models.Team) {
	sort.Slice(teams, func(i, j int) bool {
		return strings.ToLower(teams[i].Name) < strings.ToLower(teams[j].Name)
	})
}
