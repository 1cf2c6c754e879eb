package store

import "github.com/chatvault/chatvault/internal/models"

// scanFunc abstracts over pgx.Row.Scan and pgx.Rows.Scan.
type scanFunc func(dest ...any) error

// scanChat scans one chats row in chatColumns order.
func scanChat(scan scanFunc) (*models.StoredChat, error) {
	var c models.StoredChat

	err := scan(
		&c.ID, &c.ExternalID, &c.Title, &c.CreateTime, &c.UpdateTime, &c.Model,
		&c.ProjectID, &c.ProjectName, &c.SourceFile, &c.Hash, &c.ContentText,
		&c.IngestedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// scanMessage scans one messages row in messageColumns order.
func scanMessage(scan scanFunc) (*models.StoredMessage, error) {
	var m models.StoredMessage

	err := scan(&m.ID, &m.ChatID, &m.Index, &m.Role, &m.CreatedAt, &m.Content)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
