package entity

import "testing"

func TestLeadStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from LeadStatus
		to   LeadStatus
		want bool
	}{
		{"new to contacted", LeadNew, LeadContacted, true},
		{"new to qualified skips a step", LeadNew, LeadQualified, true},
		{"new to converted", LeadNew, LeadConverted, true},
		{"contacted to qualified", LeadContacted, LeadQualified, true},
		{"qualified to converted", LeadQualified, LeadConverted, true},
		{"backward contacted to new", LeadContacted, LeadNew, false},
		{"backward qualified to contacted", LeadQualified, LeadContacted, false},
		{"converted is terminal", LeadConverted, LeadQualified, false},
		{"converted cannot be lost", LeadConverted, LeadLost, false},
		{"lost is terminal", LeadLost, LeadNew, false},
		{"new to lost", LeadNew, LeadLost, true},
		{"qualified to lost", LeadQualified, LeadLost, true},
		{"same status is not a transition", LeadContacted, LeadContacted, false},
		{"unknown source", LeadStatus("bogus"), LeadContacted, false},
		{"unknown target", LeadNew, LeadStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestNewLeadDefaultsUrgency(t *testing.T) {
	lead := NewLead("Jo Smith", "07700900000", "", "", "boiler_service", "", ChannelSMS, "")
	if lead.Urgency != UrgencyRoutine {
		t.Errorf("urgency = %q, want %q", lead.Urgency, UrgencyRoutine)
	}
	if lead.Status != LeadNew {
		t.Errorf("status = %q, want %q", lead.Status, LeadNew)
	}

	emergency := NewLead("Jo Smith", "07700900000", "", "", "gas_leak", UrgencyEmergency, ChannelWhatsApp, "")
	if !emergency.IsEmergency() {
		t.Error("expected emergency lead")
	}
}
