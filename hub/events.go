package hub

import (
	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/network"
	"github.com/wfunc/thiefhunt/state"
)

func playerInfos(players []models.Player) []network.PlayerInfo {
	infos := make([]network.PlayerInfo, 0, len(players))
	for _, p := range players {
		infos = append(infos, network.PlayerInfo{
			ID:     p.ID,
			Name:   p.Name,
			Avatar: p.Avatar,
			Score:  p.TotalScore,
			IsHost: p.IsHost,
		})
	}
	return infos
}

func scoreInfos(scores []state.ScoreEntry) []network.ScoreInfo {
	infos := make([]network.ScoreInfo, 0, len(scores))
	for _, s := range scores {
		infos = append(infos, network.ScoreInfo{Name: s.Name, Avatar: s.Avatar, Score: s.Score})
	}
	return infos
}

func roleAssigned(round models.Round, pr state.PlayerRole, roster []models.Player) network.RoleAssignedEvent {
	event := network.RoleAssignedEvent{
		Action:      network.EventRoleAssigned,
		PlayerID:    pr.PlayerID,
		RoundNumber: round.RoundNumber,
		Role:        pr.Role,
		Description: pr.Description,
		Points:      pr.WinPoints,
		IsPolice:    pr.IsInvestigator(),
		IsThief:     pr.IsEvader(),
	}
	if pr.IsInvestigator() {
		event.AllPlayers = playerInfos(roster)
	}
	return event
}

func roundEnded(result *state.Result) network.RoundEndedEvent {
	roles := make([]network.RoleInfo, 0, len(result.Roles))
	for _, r := range result.Roles {
		roles = append(roles, network.RoleInfo{
			Name:             r.Name,
			Role:             r.Role,
			Points:           r.FinalScore,
			IsWronglyAccused: r.IsWronglyAccused,
		})
	}
	return network.RoundEndedEvent{
		Action:      network.EventRoundEnded,
		RoundNumber: result.RoundNumber,
		Winner:      string(result.Winner),
		ThiefName:   result.EvaderName,
		Scores:      scoreInfos(result.Scores),
		AllRoles:    roles,
	}
}
