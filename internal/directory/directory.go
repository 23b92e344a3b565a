// Package directory holds the in-memory doctor registry and slot inventory.
//
// The registry is seeded at construction and mutated only under its lock, so
// concurrent bookings of the same last slot resolve to exactly one winner.
// Appointment rows themselves are persisted by the booking service; the
// directory only owns doctors and their open slots.
package directory

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// slotLayout is the human-readable display format slots are stored in.
// Ordering comparisons parse the slot back into a time.Time instead of
// comparing the display strings, which do not sort chronologically.
const slotLayout = "January 2, 2006 3:04 PM"

// ErrNoAvailability is returned when no doctor in the specialty has an open
// slot. It is an availability outcome, not a validation failure.
var ErrNoAvailability = errors.New("directory: no available slots for specialty")

// ErrUnknownDoctor is returned when a doctor id does not exist.
var ErrUnknownDoctor = errors.New("directory: unknown doctor")

// Doctor is one registry entry. AvailableSlots is kept chronologically
// sorted; index 0 is always the earliest open slot.
type Doctor struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialty      string   `json:"specialty"`
	AvailableSlots []string `json:"available_slots"`
	Description    string   `json:"description"`
}

// Allocation is the result of a successful slot claim.
type Allocation struct {
	DoctorID      string
	DoctorName    string
	Specialty     string
	ScheduledTime string
}

// Stats summarizes the registry for the admin surface.
type Stats struct {
	TotalDoctors       int            `json:"total_doctors"`
	DoctorsBySpecialty map[string]int `json:"doctors_by_specialty"`
	AvailableSlots     int            `json:"available_slots"`
}

// Directory is the concurrency-safe registry.
type Directory struct {
	mu      sync.Mutex
	doctors []*Doctor
}

// New returns a registry pre-seeded with the demo doctor roster.
func New() *Directory {
	return &Directory{doctors: seedDoctors()}
}

// NewWithDoctors returns a registry with a caller-supplied roster. Used by
// tests that need a tiny deterministic inventory.
func NewWithDoctors(doctors []*Doctor) *Directory {
	d := &Directory{doctors: doctors}
	d.mu.Lock()
	for _, doc := range d.doctors {
		sortSlots(doc.AvailableSlots)
	}
	d.mu.Unlock()
	return d
}

// Allocate claims the earliest open slot of the first doctor in the specialty
// that has one. The claim removes the slot atomically, so two concurrent
// calls can never receive the same slot.
func (d *Directory) Allocate(specialty string) (Allocation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range d.doctors {
		if !strings.EqualFold(doc.Specialty, specialty) || len(doc.AvailableSlots) == 0 {
			continue
		}
		slot := doc.AvailableSlots[0]
		doc.AvailableSlots = doc.AvailableSlots[1:]
		return Allocation{
			DoctorID:      doc.ID,
			DoctorName:    doc.Name,
			Specialty:     doc.Specialty,
			ScheduledTime: slot,
		}, nil
	}
	return Allocation{}, ErrNoAvailability
}

// Release returns a slot to a doctor's inventory, keeping the inventory in
// chronological order so the freed slot is immediately offered again by
// NextAvailableSlot and future allocations.
func (d *Directory) Release(doctorID, slot string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc := d.byID(doctorID)
	if doc == nil {
		return ErrUnknownDoctor
	}
	doc.AvailableSlots = append(doc.AvailableSlots, slot)
	sortSlots(doc.AvailableSlots)
	return nil
}

// NextAvailableSlot returns the chronologically earliest open slot across all
// doctors in the specialty, or ErrNoAvailability.
func (d *Directory) NextAvailableSlot(specialty string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var earliest string
	var earliestAt time.Time
	for _, doc := range d.doctors {
		if !strings.EqualFold(doc.Specialty, specialty) || len(doc.AvailableSlots) == 0 {
			continue
		}
		slot := doc.AvailableSlots[0]
		at := parseSlot(slot)
		if earliest == "" || at.Before(earliestAt) {
			earliest, earliestAt = slot, at
		}
	}
	if earliest == "" {
		return "", ErrNoAvailability
	}
	return earliest, nil
}

// DoctorsBySpecialty returns copies of the matching doctors. The match is
// case-insensitive; callers never see live slot slices.
func (d *Directory) DoctorsBySpecialty(specialty string) []Doctor {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Doctor
	for _, doc := range d.doctors {
		if strings.EqualFold(doc.Specialty, specialty) {
			out = append(out, copyDoctor(doc))
		}
	}
	return out
}

// DoctorByID returns a copy of the doctor, or false when the id is unknown.
func (d *Directory) DoctorByID(id string) (Doctor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc := d.byID(id)
	if doc == nil {
		return Doctor{}, false
	}
	return copyDoctor(doc), true
}

// Specialties returns the distinct specialties in the registry, sorted.
func (d *Directory) Specialties() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, doc := range d.doctors {
		if _, ok := seen[doc.Specialty]; ok {
			continue
		}
		seen[doc.Specialty] = struct{}{}
		out = append(out, doc.Specialty)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns copies of every doctor, for the admin surface.
func (d *Directory) Snapshot() []Doctor {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Doctor, 0, len(d.doctors))
	for _, doc := range d.doctors {
		out = append(out, copyDoctor(doc))
	}
	return out
}

// Stats summarizes the registry.
func (d *Directory) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Stats{DoctorsBySpecialty: make(map[string]int)}
	for _, doc := range d.doctors {
		s.TotalDoctors++
		s.DoctorsBySpecialty[doc.Specialty]++
		s.AvailableSlots += len(doc.AvailableSlots)
	}
	return s
}

// byID requires d.mu held.
func (d *Directory) byID(id string) *Doctor {
	for _, doc := range d.doctors {
		if doc.ID == id {
			return doc
		}
	}
	return nil
}

func copyDoctor(doc *Doctor) Doctor {
	out := *doc
	out.AvailableSlots = append([]string(nil), doc.AvailableSlots...)
	return out
}

// parseSlot converts a display slot into a comparable timestamp. Unparsable
// slots sort last rather than erroring; the inventory is seeded data.
func parseSlot(slot string) time.Time {
	t, err := time.Parse(slotLayout, slot)
	if err != nil {
		return time.Unix(1<<62, 0)
	}
	return t
}

func sortSlots(slots []string) {
	sort.Slice(slots, func(i, j int) bool {
		return parseSlot(slots[i]).Before(parseSlot(slots[j]))
	})
}

// seedDoctors builds the demo roster.
func seedDoctors() []*Doctor {
	return []*Doctor{
		{
			ID: "card-001", Name: "Dr. Sarah Johnson", Specialty: "Cardiology",
			AvailableSlots: []string{
				"October 9, 2025 10:00 AM",
				"October 9, 2025 2:00 PM",
				"October 10, 2025 9:00 AM",
				"October 10, 2025 3:00 PM",
				"October 11, 2025 11:00 AM",
			},
			Description: "Board-certified cardiologist specializing in preventive cardiology and heart disease.",
		},
		{
			ID: "card-002", Name: "Dr. Michael Chen", Specialty: "Cardiology",
			AvailableSlots: []string{
				"October 9, 2025 1:00 PM",
				"October 10, 2025 10:00 AM",
				"October 11, 2025 2:00 PM",
				"October 12, 2025 9:00 AM",
			},
			Description: "Interventional cardiologist with expertise in cardiac catheterization.",
		},
		{
			ID: "derm-001", Name: "Dr. Sarah Mitchell", Specialty: "Dermatology",
			AvailableSlots: []string{
				"October 9, 2025 10:30 AM",
				"October 9, 2025 2:30 PM",
				"October 10, 2025 9:30 AM",
				"October 11, 2025 1:30 PM",
			},
			Description: "Dermatologist specializing in medical and cosmetic dermatology.",
		},
		{
			ID: "derm-002", Name: "Dr. James Wilson", Specialty: "Dermatology",
			AvailableSlots: []string{
				"October 10, 2025 11:00 AM",
				"October 11, 2025 3:00 PM",
				"October 12, 2025 10:00 AM",
			},
			Description: "Dermatopathologist with focus on skin cancer diagnosis and treatment.",
		},
		{
			ID: "ortho-001", Name: "Dr. David Rodriguez", Specialty: "Orthopedics",
			AvailableSlots: []string{
				"October 9, 2025 8:00 AM",
				"October 9, 2025 4:00 PM",
				"October 10, 2025 8:30 AM",
				"October 11, 2025 2:30 PM",
			},
			Description: "Orthopedic surgeon specializing in sports medicine and joint replacement.",
		},
		{
			ID: "neuro-001", Name: "Dr. Lisa Thompson", Specialty: "Neurology",
			AvailableSlots: []string{
				"October 10, 2025 1:00 PM",
				"October 11, 2025 10:00 AM",
				"October 12, 2025 2:00 PM",
			},
			Description: "Neurologist with expertise in headache disorders and epilepsy.",
		},
		{
			ID: "gastro-001", Name: "Dr. Robert Kim", Specialty: "Gastroenterology",
			AvailableSlots: []string{
				"October 9, 2025 11:00 AM",
				"October 10, 2025 2:00 PM",
				"October 11, 2025 9:00 AM",
			},
			Description: "Gastroenterologist specializing in digestive disorders and endoscopy.",
		},
		{
			ID: "pulm-001", Name: "Dr. Amanda Foster", Specialty: "Pulmonology",
			AvailableSlots: []string{
				"October 9, 2025 3:00 PM",
				"October 10, 2025 11:30 AM",
				"October 12, 2025 1:00 PM",
			},
			Description: "Pulmonologist with focus on asthma and chronic respiratory conditions.",
		},
		{
			ID: "internal-001", Name: "Dr. Jennifer Lee", Specialty: "Internal Medicine",
			AvailableSlots: []string{
				"October 9, 2025 9:00 AM",
				"October 9, 2025 1:30 PM",
				"October 10, 2025 10:30 AM",
				"October 10, 2025 3:30 PM",
				"October 11, 2025 8:30 AM",
			},
			Description: "Internal medicine physician providing comprehensive adult healthcare.",
		},
		{
			ID: "internal-002", Name: "Dr. Mark Davis", Specialty: "Internal Medicine",
			AvailableSlots: []string{
				"October 9, 2025 12:00 PM",
				"October 10, 2025 9:00 AM",
				"October 11, 2025 4:00 PM",
			},
			Description: "Primary care physician with focus on preventive medicine.",
		},
	}
}
