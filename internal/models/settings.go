package models

// GuestLimits caps what a guest session may create.
type GuestLimits struct {
	Projects         int `json:"projects"`
	PhasesPerProject int `json:"phases_per_project"`
	TasksPerPhase    int `json:"tasks_per_phase"`
	SubtasksPerTask  int `json:"subtasks_per_task"`
}

// GlobalSettings is the global_settings.json document managed by administrators.
type GlobalSettings struct {
	GuestLimits         GuestLimits `json:"guest_limits"`
	RegistrationEnabled bool        `json:"registration_enabled"`
	MaintenanceMode     bool        `json:"maintenance_mode"`
	GeneralDebugMode    bool        `json:"general_debug_mode"`
}

// DefaultGlobalSettings returns the settings used when global_settings.json is absent.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		GuestLimits: GuestLimits{
			Projects:         1,
			PhasesPerProject: 3,
			TasksPerPhase:    5,
			SubtasksPerTask:  5,
		},
		RegistrationEnabled: true,
	}
}

// PublicSettings is the subset of global settings exposed to every visitor.
type PublicSettings struct {
	GuestLimits         GuestLimits `json:"guest_limits"`
	RegistrationEnabled bool        `json:"registration_enabled"`
	MaintenanceMode     bool        `json:"maintenance_mode"`
}
