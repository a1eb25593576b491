// Package period содержит арифметику расчётных периодов пула токенов.
// Границы периодов считаются в UTC скользящими календарными месяцами,
// привязанными к моменту создания пула: переходы на летнее время
// на границы не влияют.
package period

import "time"

// Window описывает один расчётный период пула.
type Window struct {
	Start time.Time
	End   time.Time
}

// New возвращает первый период, начинающийся в указанный момент.
func New(start time.Time) Window {
	s := start.UTC()
	return Window{Start: s, End: s.AddDate(0, 1, 0)}
}

// Next возвращает период, следующий сразу за w.
func (w Window) Next() Window {
	return Window{Start: w.End, End: w.End.AddDate(0, 1, 0)}
}

// Advance продвигает период вперёд до тех пор, пока now не окажется
// внутри него. Если период уже содержит now, возвращает его без изменений.
// Пропущенные периоды (пул долго не использовался) схлопываются в один шаг.
func Advance(w Window, now time.Time) Window {
	nowUTC := now.UTC()
	for !w.End.After(nowUTC) {
		w = w.Next()
	}
	return w
}

// Contains сообщает, попадает ли момент t в период w.
// Начало включительно, конец исключительно.
func (w Window) Contains(t time.Time) bool {
	tUTC := t.UTC()
	return !tUTC.Before(w.Start) && tUTC.Before(w.End)
}
