package models

// TenantOwned is implemented by every entity carrying a team_id column.
// The tenant repository uses it to stamp new records with the active team
// without reflection.
type TenantOwned interface {
	SetTeamID(id string)
	OwningTeamID() string
}

func (s *ServerProvider) SetTeamID(id string) { s.TeamID = id }
func (s *ServerProvider) OwningTeamID() string { return s.TeamID }

func (s *Server) SetTeamID(id string) { s.TeamID = id }
func (s *Server) OwningTeamID() string { return s.TeamID }

func (d *Database) SetTeamID(id string) { d.TeamID = id }
func (d *Database) OwningTeamID() string { return d.TeamID }

func (c *CronJob) SetTeamID(id string) { c.TeamID = id }
func (c *CronJob) OwningTeamID() string { return c.TeamID }

func (d *Daemon) SetTeamID(id string) { d.TeamID = id }
func (d *Daemon) OwningTeamID() string { return d.TeamID }

func (k *SshKey) SetTeamID(id string) { k.TeamID = id }
func (k *SshKey) OwningTeamID() string { return k.TeamID }

func (s *SourceControl) SetTeamID(id string) { s.TeamID = id }
func (s *SourceControl) OwningTeamID() string { return s.TeamID }

func (a *ActivityLog) SetTeamID(id string) { a.TeamID = id }
func (a *ActivityLog) OwningTeamID() string { return a.TeamID }

func (i *TeamInvitation) SetTeamID(id string) { i.TeamID = id }
func (i *TeamInvitation) OwningTeamID() string { return i.TeamID }
