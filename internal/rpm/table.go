package rpm

import "github.com/rpm-monitor/backend/internal/models"

// Row is one line of the derived RPM table.
type Row struct {
	GroupID     string               `json:"groupId" msgpack:"groupId"`
	GroupName   string               `json:"groupName" msgpack:"groupName"`
	ComponentID string               `json:"componentId" msgpack:"componentId"`
	Type        models.ComponentType `json:"type" msgpack:"type"`
	EntryRPM    float64              `json:"entryRpm" msgpack:"entryRpm"`
	RPM         float64              `json:"rpm" msgpack:"rpm"`
	Display     string               `json:"display" msgpack:"display"`
	Valid       bool                 `json:"valid" msgpack:"valid"`
}

// EntryRPM returns the entry RPM recorded for groupID, or zero.
func EntryRPM(inputs []models.GroupInput, groupID string) float64 {
	for _, in := range inputs {
		if in.ID == groupID {
			return in.InputRPM
		}
	}
	return 0
}

// Table derives every component of every group. Each row is computed
// independently, so a zero gear parameter only marks the affected rows invalid.
func Table(groups []models.Group, inputs []models.GroupInput, p models.TransmissionParams) []Row {
	var rows []Row
	for _, g := range groups {
		entry := EntryRPM(inputs, g.ID)
		for _, c := range g.Components {
			v := Derive(c.Type, entry, p)
			rows = append(rows, Row{
				GroupID:     g.ID,
				GroupName:   g.Name,
				ComponentID: c.ID,
				Type:        c.Type,
				EntryRPM:    entry,
				RPM:         Sanitize(v),
				Display:     Format(v),
				Valid:       Finite(v),
			})
		}
	}
	return rows
}
