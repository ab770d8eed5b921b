package catalog

// builtinLessons is the process-lifetime lesson table, ordered from
// fundamentals to advanced material handling.
var builtinLessons = []Lesson{
	{
		ID:                   "lesson_001",
		Title:                "Introduction to 3D printing",
		Level:                "beginner",
		Content:              "The basics of 3D printing: what it is, how FDM printers work, and the core terminology (nozzle, bed, layer height, slicer).",
		EstimatedTimeMinutes: 10,
	},
	{
		ID:                   "lesson_002",
		Title:                "Choosing a material: PLA",
		Level:                "beginner",
		Content:              "PLA is the most popular material. Nozzle temperatures of 190-215C, bed at 50C, minimal warping, and where it falls short.",
		EstimatedTimeMinutes: 15,
		Prerequisites:        []string{"lesson_001"},
	},
	{
		ID:                   "lesson_003",
		Title:                "Bed leveling",
		Level:                "beginner",
		Content:              "How to level the print bed correctly for good first-layer adhesion, manually and with a probe.",
		EstimatedTimeMinutes: 20,
		Prerequisites:        []string{"lesson_001"},
	},
	{
		ID:                   "lesson_004",
		Title:                "Fixing warping",
		Level:                "intermediate",
		Content:              "Why corners lift off the bed and how to fix it: bed temperature, adhesion aids, enclosures and draft control.",
		EstimatedTimeMinutes: 15,
		Prerequisites:        []string{"lesson_001", "lesson_002"},
	},
	{
		ID:                   "lesson_005",
		Title:                "G-code commands",
		Level:                "intermediate",
		Content:              "The G-code commands you will actually use: M104/M109 for nozzle temperature, M140/M190 for the bed, G28 homing, G29 bed mesh.",
		EstimatedTimeMinutes: 25,
		Prerequisites:        []string{"lesson_001"},
	},
	{
		ID:                   "lesson_006",
		Title:                "Advanced materials: PETG and ABS",
		Level:                "advanced",
		Content:              "Working with PETG and ABS: higher temperatures, stringing control, enclosure requirements and common failure modes.",
		EstimatedTimeMinutes: 30,
		Prerequisites:        []string{"lesson_002", "lesson_004"},
	},
}

// builtinProjects is the process-lifetime project table, easiest first.
var builtinProjects = []Project{
	{
		ID:                 "project_001",
		Name:               "Calibration cube",
		Description:        "A simple 20x20x20 mm cube for dialing in the printer",
		Difficulty:         "easy",
		EstimatedTimeHours: 1,
		RequiredMaterial:   "PLA",
		RequiredSkills:     []string{"bed_leveling"},
		Instructions:       "Print the cube and verify its dimensions with calipers.",
	},
	{
		ID:                 "project_002",
		Name:               "Stringing test",
		Description:        "Two towers for tuning retraction settings",
		Difficulty:         "easy",
		EstimatedTimeHours: 1,
		RequiredMaterial:   "PLA",
		RequiredSkills:     []string{"retraction"},
		Instructions:       "Print the test and check for strings between the towers.",
	},
	{
		ID:                 "project_003",
		Name:               "Temperature tower",
		Description:        "A tower for finding the optimal temperature for a material",
		Difficulty:         "medium",
		EstimatedTimeHours: 2,
		RequiredMaterial:   "PLA",
		RequiredSkills:     []string{"temperature", "slicer_settings"},
		Instructions:       "Configure a per-layer temperature change in the slicer.",
	},
	{
		ID:                 "project_004",
		Name:               "Tool organizer",
		Description:        "A practical organizer for storing printer tools",
		Difficulty:         "medium",
		EstimatedTimeHours: 4,
		RequiredMaterial:   "PLA",
		RequiredSkills:     []string{"bed_leveling", "supports"},
		Instructions:       "Use supports for the overhanging compartments.",
	},
	{
		ID:                 "project_005",
		Name:               "Electronics enclosure",
		Description:        "A case for an Arduino or Raspberry Pi with exact dimensions",
		Difficulty:         "hard",
		EstimatedTimeHours: 6,
		RequiredMaterial:   "PETG",
		RequiredSkills:     []string{"precision", "supports", "post_processing"},
		Instructions:       "Requires a well-calibrated printer and possibly post-processing.",
	},
}
