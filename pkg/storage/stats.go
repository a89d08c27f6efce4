package storage

// Stats summarizes the store for diagnostics.
type Stats struct {
	Threads  int `json:"threads"`
	Messages int `json:"messages"`
	Contacts int `json:"contacts"`
}

// Stats counts the store's rows.
func (s *DB) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM threads`).Scan(&st.Threads); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE status != ?`, string(MessageStatusDeleted)).Scan(&st.Messages); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&st.Contacts); err != nil {
		return st, err
	}
	return st, nil
}
