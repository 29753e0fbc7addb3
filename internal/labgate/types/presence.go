package types

type ScanRequest struct {
	ID string `json:"id"`
}

// ScanResponse is the result of one scan.  Success=false carries only a
// short human-readable message; the scanning session never sees a crash.
type ScanResponse struct {
	Success   bool   `json:"success"`
	Action    string `json:"action,omitempty"` // "Entry" | "Exit"
	Status    string `json:"status,omitempty"` // "Inside" | "Outside"
	Seq       int64  `json:"seq,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
}

type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	AccessLevel string `json:"accessLevel"`
	Authorized  bool   `json:"authorized"`
}

// HistoryEntry is one ledger row as served to clients, newest first by seq.
type HistoryEntry struct {
	Seq       int64  `json:"seq"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ActiveEntry is one currently-inside person: their most recent Inside
// transition within the trailing window.
type ActiveEntry struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
}
