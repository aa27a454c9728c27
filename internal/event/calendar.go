package event

// SimulationStart is pushed once, on day 0, before the loop starts.
type SimulationStart struct {
	YearStart Year `json:"year_start"`
	Years     int  `json:"years"`
}

func (e *SimulationStart) EventType() EventType {
	return EventTypeSimulationStart
}

type YearStart struct {
	Year Year `json:"year"`
}

func (e *YearStart) EventType() EventType {
	return EventTypeYearStart
}

type YearEnd struct {
	Year Year `json:"year"`
}

func (e *YearEnd) EventType() EventType {
	return EventTypeYearEnd
}
