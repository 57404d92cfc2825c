package types

// Table names the engine itself depends on.
const (
	TableAgency                = "agency"
	TableCalendar              = "calendar"
	TableScheduleExceptions    = "schedule_exceptions"
	TableStops                 = "stops"
	TableLocations             = "locations"
	TableLocationGroups        = "location_groups"
	TableLocationGroupStops    = "location_group_stops"
	TableBookingRules          = "booking_rules"
	TableRoutes                = "routes"
	TablePatterns              = "patterns"
	TablePatternStops          = "pattern_stops"
	TablePatternLocations      = "pattern_locations"
	TablePatternLocationGroups = "pattern_location_groups"
	TableShapes                = "shapes"
	TableTrips                 = "trips"
	TableStopTimes             = "stop_times"
	TableFrequencies           = "frequencies"
)

// Field names the engine itself depends on.
const (
	FieldTripID        = "trip_id"
	FieldPatternID     = "pattern_id"
	FieldStopID        = "stop_id"
	FieldStopSequence  = "stop_sequence"
	FieldArrivalTime   = "arrival_time"
	FieldDepartureTime = "departure_time"
	FieldStartWindow   = "start_pickup_dropoff_window"
	FieldEndWindow     = "end_pickup_dropoff_window"
)

var standardCatalog = mustCatalog(standardTables()...)

// StandardCatalog returns the catalog of the schedule editor tables.
func StandardCatalog() *Catalog { return standardCatalog }

func mustCatalog(tables ...Table) *Catalog {
	c, err := NewCatalog(tables...)
	if err != nil {
		panic(err)
	}
	return c
}

func str(name string) Field { return Field{Name: name, Type: FieldString} }

func reqStr(name string) Field { return Field{Name: name, Type: FieldString, Required: true} }

func integer(name string) Field { return Field{Name: name, Type: FieldInteger} }

func reqInt(name string) Field { return Field{Name: name, Type: FieldInteger, Required: true} }

func double(name string) Field { return Field{Name: name, Type: FieldDouble} }

func timeOfDay(name string) Field { return Field{Name: name, Type: FieldTime} }

func ref(name string, required bool, tables ...string) Field {
	return Field{Name: name, Type: FieldString, Required: required, References: tables}
}

func refList(name string, tables ...string) Field {
	return Field{Name: name, Type: FieldStringList, References: tables}
}

// haltLinkedFields are copied from a pattern halt into the stop times at
// the same position of every trip on the pattern.
var haltLinkedFields = []string{
	"timepoint", "drop_off_type", "pickup_type", "continuous_pickup",
	"continuous_drop_off", "pickup_booking_rule_id", "drop_off_booking_rule_id",
}

func haltLinks(extra ...string) []LinkedFields {
	return []LinkedFields{{
		Table:      TableStopTimes,
		KeyField:   FieldPatternID,
		Fields:     append(append([]string{}, haltLinkedFields...), extra...),
		OrderField: FieldStopSequence,
		Through:    TableTrips,
		ThroughKey: FieldTripID,
	}}
}

func flexHaltFields(refField, refTable string) []Field {
	return []Field{
		ref(FieldPatternID, true, TablePatterns),
		reqInt(FieldStopSequence),
		ref(refField, true, refTable),
		timeOfDay("flex_default_travel_time"),
		timeOfDay("flex_default_zone_time"),
		integer("drop_off_type"),
		integer("pickup_type"),
		integer("continuous_pickup"),
		integer("continuous_drop_off"),
		integer("timepoint"),
		double("mean_duration_factor"),
		double("mean_duration_offset"),
		double("safe_duration_factor"),
		double("safe_duration_offset"),
		ref("pickup_booking_rule_id", false, TableBookingRules),
		ref("drop_off_booking_rule_id", false, TableBookingRules),
	}
}

func standardTables() []Table {
	return []Table{
		{
			Name: TableAgency,
			Fields: []Field{
				str("agency_id"), reqStr("agency_name"), reqStr("agency_url"), reqStr("agency_timezone"),
				str("agency_lang"), str("agency_phone"), str("agency_fare_url"), str("agency_email"),
			},
			KeyField:          "agency_id",
			KeyPolicy:         KeyOptionalWhenSingle,
			CascadeRestricted: true,
		},
		{
			Name: TableCalendar,
			Fields: []Field{
				reqStr("service_id"), str("description"),
				reqInt("monday"), reqInt("tuesday"), reqInt("wednesday"), reqInt("thursday"),
				reqInt("friday"), reqInt("saturday"), reqInt("sunday"),
				reqStr("start_date"), reqStr("end_date"),
			},
			KeyField:          "service_id",
			CascadeRestricted: true,
		},
		{
			Name: TableScheduleExceptions,
			Fields: []Field{
				reqStr("name"), {Name: "dates", Type: FieldStringList}, integer("exemplar"),
				refList("custom_schedule", TableCalendar),
				refList("added_service", TableCalendar),
				refList("removed_service", TableCalendar),
			},
			KeyField: "name",
		},
		{
			Name: TableStops,
			Fields: []Field{
				reqStr(FieldStopID), str("stop_code"), str("stop_name"), str("stop_desc"),
				double("stop_lat"), double("stop_lon"), str("zone_id"), str("stop_url"),
				integer("location_type"), ref("parent_station", false, TableStops),
				str("stop_timezone"), integer("wheelchair_boarding"), str("platform_code"),
			},
			KeyField:          FieldStopID,
			CascadeRestricted: true,
		},
		{
			Name: TableLocations,
			Fields: []Field{
				reqStr("location_id"), str("stop_name"), str("stop_desc"), str("zone_id"),
				str("stop_url"), str("geometry_type"),
			},
			KeyField:          "location_id",
			CascadeRestricted: true,
		},
		{
			Name:              TableLocationGroups,
			Fields:            []Field{reqStr("location_group_id"), str("location_group_name")},
			KeyField:          "location_group_id",
			CascadeRestricted: true,
		},
		{
			Name: TableLocationGroupStops,
			Fields: []Field{
				ref("location_group_id", true, TableLocationGroups),
				refList(FieldStopID, TableStops),
			},
			KeyField: "location_group_id",
		},
		{
			Name: TableBookingRules,
			Fields: []Field{
				reqStr("booking_rule_id"), integer("booking_type"), integer("prior_notice_duration_min"),
				integer("prior_notice_duration_max"), str("message"), str("phone_number"), str("info_url"),
			},
			KeyField:          "booking_rule_id",
			CascadeRestricted: true,
		},
		{
			Name: TableRoutes,
			Fields: []Field{
				reqStr("route_id"), ref("agency_id", false, TableAgency),
				str("route_short_name"), str("route_long_name"), str("route_desc"),
				reqInt("route_type"), str("route_url"), str("route_color"), str("route_text_color"),
				integer("wheelchair_accessible"), integer("publicly_visible"), integer("status"),
				integer("continuous_pickup"), integer("continuous_drop_off"),
			},
			KeyField: "route_id",
			Linked: []LinkedFields{{
				Table: TableTrips, KeyField: "route_id", Fields: []string{"wheelchair_accessible"},
			}},
		},
		{
			Name: TablePatterns,
			Fields: []Field{
				reqStr(FieldPatternID), ref("route_id", true, TableRoutes), str("name"),
				integer("direction_id"), integer("use_frequency"), ref("shape_id", false, TableShapes),
			},
			KeyField:      FieldPatternID,
			Dependents:    []string{TableShapes},
			FrequencyFlag: "use_frequency",
			Linked: []LinkedFields{{
				Table: TableTrips, KeyField: FieldPatternID, Fields: []string{"direction_id", "shape_id"},
			}},
		},
		{
			Name: TablePatternStops,
			Fields: []Field{
				ref(FieldPatternID, true, TablePatterns),
				reqInt(FieldStopSequence),
				ref(FieldStopID, true, TableStops),
				timeOfDay("default_travel_time"),
				timeOfDay("default_dwell_time"),
				integer("drop_off_type"),
				integer("pickup_type"),
				integer("continuous_pickup"),
				integer("continuous_drop_off"),
				double("shape_dist_traveled"),
				integer("timepoint"),
				ref("pickup_booking_rule_id", false, TableBookingRules),
				ref("drop_off_booking_rule_id", false, TableBookingRules),
			},
			KeyField:    FieldPatternID,
			OrderField:  FieldStopSequence,
			Ordering:    OrderIncreasing,
			ParentTable: TablePatterns,
			Halt: &HaltSpec{
				Kind: HaltStop, RefField: FieldStopID,
				TravelField: "default_travel_time", DwellField: "default_dwell_time",
			},
			Linked: haltLinks("shape_dist_traveled"),
		},
		{
			Name:         TablePatternLocations,
			Fields:       flexHaltFields("location_id", TableLocations),
			KeyField:     FieldPatternID,
			OrderField:   FieldStopSequence,
			Ordering:     OrderIncreasing,
			ParentTable:  TablePatterns,
			DefaultEmpty: true,
			Halt: &HaltSpec{
				Kind: HaltLocation, RefField: "location_id",
				TravelField: "flex_default_travel_time", DwellField: "flex_default_zone_time",
			},
			Linked: haltLinks(),
		},
		{
			Name:         TablePatternLocationGroups,
			Fields:       flexHaltFields("location_group_id", TableLocationGroups),
			KeyField:     FieldPatternID,
			OrderField:   FieldStopSequence,
			Ordering:     OrderIncreasing,
			ParentTable:  TablePatterns,
			DefaultEmpty: true,
			Halt: &HaltSpec{
				Kind: HaltLocationGroup, RefField: "location_group_id",
				TravelField: "flex_default_travel_time", DwellField: "flex_default_zone_time",
			},
			Linked: haltLinks(),
		},
		{
			Name: TableShapes,
			Fields: []Field{
				reqStr("shape_id"), reqInt("shape_pt_sequence"),
				{Name: "shape_pt_lat", Type: FieldDouble, Required: true},
				{Name: "shape_pt_lon", Type: FieldDouble, Required: true},
				double("shape_dist_traveled"), integer("point_type"),
			},
			KeyField:       "shape_id",
			OrderField:     "shape_pt_sequence",
			SharedGeometry: true,
		},
		{
			Name: TableTrips,
			Fields: []Field{
				str(FieldTripID), ref("route_id", true, TableRoutes), ref("service_id", true, TableCalendar),
				ref(FieldPatternID, false, TablePatterns), str("trip_headsign"), str("trip_short_name"),
				integer("direction_id"), str("block_id"), ref("shape_id", false, TableShapes),
				integer("wheelchair_accessible"), integer("bikes_allowed"),
			},
			KeyField:  FieldTripID,
			KeyPolicy: KeyGenerated,
		},
		{
			Name: TableStopTimes,
			Fields: []Field{
				ref(FieldTripID, true, TableTrips),
				reqInt(FieldStopSequence),
				ref(FieldStopID, true, TableStops, TableLocations, TableLocationGroups),
				timeOfDay(FieldArrivalTime), timeOfDay(FieldDepartureTime),
				timeOfDay(FieldStartWindow), timeOfDay(FieldEndWindow),
				str("stop_headsign"), integer("pickup_type"), integer("drop_off_type"),
				integer("continuous_pickup"), integer("continuous_drop_off"),
				double("shape_dist_traveled"), integer("timepoint"),
				ref("pickup_booking_rule_id", false, TableBookingRules),
				ref("drop_off_booking_rule_id", false, TableBookingRules),
			},
			KeyField:    FieldTripID,
			OrderField:  FieldStopSequence,
			Ordering:    OrderIncreasing,
			ParentTable: TableTrips,
		},
		{
			Name: TableFrequencies,
			Fields: []Field{
				ref(FieldTripID, true, TableTrips),
				{Name: "start_time", Type: FieldTime, Required: true},
				{Name: "end_time", Type: FieldTime, Required: true},
				reqInt("headway_secs"), integer("exact_times"),
			},
			KeyField:      FieldTripID,
			ParentTable:   TableTrips,
			FrequencyOnly: true,
		},
	}
}
