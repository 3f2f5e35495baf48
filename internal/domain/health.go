package domain

// SleepMetrics holds one night's sleep figures. Every field is optional;
// a nil pointer means the ring did not report that value.
type SleepMetrics struct {
	Score       *int     `json:"score,omitempty"`
	TotalSleep  *int     `json:"totalSleep,omitempty"` // seconds
	DeepSleep   *int     `json:"deepSleep,omitempty"`  // seconds
	RemSleep    *int     `json:"remSleep,omitempty"`   // seconds
	LightSleep  *int     `json:"lightSleep,omitempty"` // seconds
	AwakeTime   *int     `json:"awakeTime,omitempty"`  // seconds
	AvgHR       *float64 `json:"avgHR,omitempty"`
	LowestHR    *float64 `json:"lowestHR,omitempty"`
	AvgHRV      *int     `json:"avgHRV,omitempty"`
	Efficiency  *int     `json:"efficiency,omitempty"`
	Restfulness *int     `json:"restfulness,omitempty"`
	Latency     *int     `json:"latency,omitempty"`
}

// ActivityMetrics holds one day's activity figures.
type ActivityMetrics struct {
	Score          *int `json:"score,omitempty"`
	ActiveCalories *int `json:"activeCalories,omitempty"`
	TotalCalories  *int `json:"totalCalories,omitempty"`
	Steps          *int `json:"steps,omitempty"`
	Distance       *int `json:"distance,omitempty"`       // meters
	HighActivity   *int `json:"highActivity,omitempty"`   // seconds
	MediumActivity *int `json:"mediumActivity,omitempty"` // seconds
	LowActivity    *int `json:"lowActivity,omitempty"`    // seconds
	SedentaryTime  *int `json:"sedentaryTime,omitempty"`  // seconds
}

// ReadinessMetrics holds one day's readiness contributors.
type ReadinessMetrics struct {
	Score           *int     `json:"score,omitempty"`
	TempDeviation   *float64 `json:"tempDeviation,omitempty"`
	ActivityBalance *int     `json:"activityBalance,omitempty"`
	BodyTemperature *int     `json:"bodyTemperature,omitempty"`
	HRVBalance      *int     `json:"hrvBalance,omitempty"`
	PreviousDay     *int     `json:"previousDayActivity,omitempty"`
	PreviousNight   *int     `json:"previousNight,omitempty"`
	RecoveryIndex   *int     `json:"recoveryIndex,omitempty"`
	RestingHR       *int     `json:"restingHeartRate,omitempty"`
	SleepBalance    *int     `json:"sleepBalance,omitempty"`
}

// HealthRecord is one calendar day of wearable data. Sections the ring did
// not report are nil. Records are values passed through the pipeline and
// never mutated by consumers.
type HealthRecord struct {
	Day       string            `json:"day"` // YYYY-MM-DD
	Sleep     *SleepMetrics     `json:"sleep,omitempty"`
	Activity  *ActivityMetrics  `json:"activity,omitempty"`
	Readiness *ReadinessMetrics `json:"readiness,omitempty"`
}
