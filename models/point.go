package models

import "time"

// StatusPoint é o status do ponto na API remota ("open" | "close").
type StatusPoint string

// Point é o registro devolvido pela API remota ao aceitar uma batida.
// A API pode responder com clock_in, clock_out ou timestamp conforme o tipo.
type Point struct {
	ID        string      `json:"id"`
	Status    StatusPoint `json:"status"`
	ClockIn   *time.Time  `json:"clock_in,omitempty"`
	ClockOut  *time.Time  `json:"clock_out,omitempty"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
}

// At retorna o horário confirmado pelo servidor, se houver.
func (p Point) At() (time.Time, bool) {
	switch {
	case p.Timestamp != nil:
		return *p.Timestamp, true
	case p.ClockOut != nil:
		return *p.ClockOut, true
	case p.ClockIn != nil:
		return *p.ClockIn, true
	}
	return time.Time{}, false
}
