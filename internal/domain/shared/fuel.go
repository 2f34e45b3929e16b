package shared

import "fmt"

// Fuel is an immutable fuel state. Mutating operations return a new value.
type Fuel struct {
	Current  int
	Capacity int
}

// NewFuel creates a fuel value object with validation
func NewFuel(current, capacity int) (*Fuel, error) {
	if current < 0 {
		return nil, fmt.Errorf("current fuel cannot be negative")
	}
	if capacity < 0 {
		return nil, fmt.Errorf("fuel capacity cannot be negative")
	}
	if current > capacity {
		return nil, fmt.Errorf("current fuel cannot exceed capacity")
	}

	return &Fuel{Current: current, Capacity: capacity}, nil
}

// Percentage returns fuel as a percentage of capacity
func (f *Fuel) Percentage() float64 {
	if f.Capacity == 0 {
		return 0.0
	}
	return float64(f.Current) / float64(f.Capacity) * 100.0
}

// Consume returns a new Fuel with amount consumed, floored at zero
func (f *Fuel) Consume(amount int) (*Fuel, error) {
	if amount < 0 {
		return nil, fmt.Errorf("fuel amount cannot be negative")
	}
	newCurrent := f.Current - amount
	if newCurrent < 0 {
		newCurrent = 0
	}
	return &Fuel{Current: newCurrent, Capacity: f.Capacity}, nil
}

// Add returns a new Fuel with amount added, capped at capacity
func (f *Fuel) Add(amount int) (*Fuel, error) {
	if amount < 0 {
		return nil, fmt.Errorf("add amount cannot be negative")
	}
	newCurrent := f.Current + amount
	if newCurrent > f.Capacity {
		newCurrent = f.Capacity
	}
	return &Fuel{Current: newCurrent, Capacity: f.Capacity}, nil
}

// CanTravel reports whether current fuel covers required plus a
// proportional safety margin (0.10 means 10%).
func (f *Fuel) CanTravel(required int, safetyMargin float64) bool {
	requiredWithMargin := int(float64(required) * (1 + safetyMargin))
	return f.Current >= requiredWithMargin
}

// IsFull reports whether fuel is at capacity
func (f *Fuel) IsFull() bool {
	return f.Current == f.Capacity
}

func (f *Fuel) String() string {
	return fmt.Sprintf("Fuel(%d/%d)", f.Current, f.Capacity)
}
