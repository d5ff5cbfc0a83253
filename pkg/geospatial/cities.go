package geospatial

import (
	"sort"
	"strings"
)

// cityTable holds state capitals and the largest US cities.
// Ambiguous names have state-qualified keys plus an unqualified default.
var cityTable = map[string]GeoPoint{
	// state capitals
	"montgomery":      {32.3668, -86.3000},
	"juneau":          {58.3019, -134.4197},
	"phoenix":         {33.4484, -112.0740},
	"little rock":     {34.7465, -92.2896},
	"sacramento":      {38.5816, -121.4944},
	"denver":          {39.7392, -104.9903},
	"hartford":        {41.7658, -72.6734},
	"dover":           {39.1582, -75.5244},
	"tallahassee":     {30.4383, -84.2807},
	"atlanta":         {33.7490, -84.3880},
	"honolulu":        {21.3069, -157.8583},
	"boise":           {43.6150, -116.2023},
	"springfield, il": {39.7817, -89.6501},
	"indianapolis":    {39.7684, -86.1581},
	"des moines":      {41.5868, -93.6250},
	"topeka":          {39.0473, -95.6752},
	"frankfort":       {38.2009, -84.8733},
	"baton rouge":     {30.4515, -91.1871},
	"augusta, me":     {44.3106, -69.7795},
	"annapolis":       {38.9784, -76.4922},
	"boston":          {42.3601, -71.0589},
	"lansing":         {42.7325, -84.5555},
	"saint paul":      {44.9537, -93.0900},
	"jackson, ms":     {32.2988, -90.1848},
	"jefferson city":  {38.5767, -92.1735},
	"helena":          {46.5891, -112.0391},
	"lincoln":         {40.8136, -96.7026},
	"carson city":     {39.1638, -119.7674},
	"concord, nh":     {43.2081, -71.5376},
	"trenton":         {40.2206, -74.7597},
	"santa fe":        {35.6870, -105.9378},
	"albany, ny":      {42.6526, -73.7562},
	"raleigh":         {35.7796, -78.6382},
	"bismarck":        {46.8083, -100.7837},
	"columbus, oh":    {39.9612, -82.9988},
	"oklahoma city":   {35.4676, -97.5164},
	"salem, or":       {44.9429, -123.0351},
	"harrisburg":      {40.2732, -76.8867},
	"providence":      {41.8240, -71.4128},
	"columbia, sc":    {34.0007, -81.0348},
	"pierre":          {44.3683, -100.3510},
	"nashville":       {36.1627, -86.7816},
	"austin":          {30.2672, -97.7431},
	"salt lake city":  {40.7608, -111.8910},
	"montpelier":      {44.2601, -72.5754},
	"richmond, va":    {37.5407, -77.4360},
	"olympia":         {47.0379, -122.9007},
	"charleston, wv":  {38.3498, -81.6326},
	"madison":         {43.0731, -89.4012},
	"cheyenne":        {41.1400, -104.8202},

	// largest cities
	"new york":         {40.7128, -74.0060},
	"new york city":    {40.7128, -74.0060},
	"brooklyn":         {40.6782, -73.9442},
	"los angeles":      {34.0522, -118.2437},
	"santa monica":     {34.0195, -118.4912},
	"chicago":          {41.8781, -87.6298},
	"houston":          {29.7604, -95.3698},
	"philadelphia":     {39.9526, -75.1652},
	"san antonio":      {29.4241, -98.4936},
	"san diego":        {32.7157, -117.1611},
	"dallas":           {32.7767, -96.7970},
	"san jose":         {37.3382, -121.8863},
	"jacksonville":     {30.3322, -81.6557},
	"fort worth":       {32.7555, -97.3308},
	"charlotte":        {35.2271, -80.8431},
	"san francisco":    {37.7749, -122.4194},
	"oakland":          {37.8044, -122.2712},
	"berkeley":         {37.8715, -122.2730},
	"palo alto":        {37.4419, -122.1430},
	"seattle":          {47.6062, -122.3321},
	"washington":       {38.9072, -77.0369},
	"washington, dc":   {38.9072, -77.0369},
	"el paso":          {31.7619, -106.4850},
	"detroit":          {42.3314, -83.0458},
	"ann arbor":        {42.2808, -83.7430},
	"memphis":          {35.1495, -90.0490},
	"portland, or":     {45.5152, -122.6784},
	"portland, me":     {43.6591, -70.2568},
	"louisville":       {38.2527, -85.7585},
	"baltimore":        {39.2904, -76.6122},
	"milwaukee":        {43.0389, -87.9065},
	"albuquerque":      {35.0844, -106.6504},
	"tucson":           {32.2226, -110.9747},
	"fresno":           {36.7378, -119.7871},
	"mesa":             {33.4152, -111.8315},
	"kansas city, mo":  {39.0997, -94.5786},
	"kansas city, ks":  {39.1141, -94.6275},
	"omaha":            {41.2565, -95.9345},
	"colorado springs": {38.8339, -104.8214},
	"boulder":          {40.0150, -105.2705},
	"miami":            {25.7617, -80.1918},
	"minneapolis":      {44.9778, -93.2650},
	"tulsa":            {36.1540, -95.9928},
	"wichita":          {37.6872, -97.3301},
	"new orleans":      {29.9511, -90.0715},
	"arlington, tx":    {32.7357, -97.1081},
	"cleveland":        {41.4993, -81.6944},
	"tampa":            {27.9506, -82.4572},
	"orlando":          {28.5383, -81.3792},
	"las vegas":        {36.1699, -115.1398},
	"pittsburgh":       {40.4406, -79.9959},
	"cincinnati":       {39.1031, -84.5120},
	"st louis":         {38.6270, -90.1994},
	"saint louis":      {38.6270, -90.1994},
	"irvine":           {33.6846, -117.8265},
	"durham":           {35.9940, -78.8986},
	"cambridge, ma":    {42.3736, -71.1097},
	"anchorage":        {61.2181, -149.9003},
	"charleston, sc":   {32.7765, -79.9311},
	"columbia, mo":     {38.9517, -92.3341},
	"springfield, mo":  {37.2090, -93.2923},
	"springfield, ma":  {42.1015, -72.5898},
	"jackson, wy":      {43.4799, -110.7624},
	"augusta, ga":      {33.4735, -82.0105},
	"albany, ga":       {31.5785, -84.1557},
	"columbus, ga":     {32.4610, -84.9877},
	"richmond, ca":     {37.9358, -122.3477},
	"salem, ma":        {42.5195, -70.8967},
	"concord, ca":      {37.9780, -122.0311},
	"arlington, va":    {38.8816, -77.0910},
	"cambridge":        {42.3736, -71.1097},
}

// defaults for ambiguous names given without a state
var ambiguousDefaults = map[string]string{
	"charleston":  "charleston, sc",
	"portland":    "portland, or",
	"columbia":    "columbia, sc",
	"kansas city": "kansas city, mo",
	"springfield": "springfield, il",
	"jackson":     "jackson, ms",
	"augusta":     "augusta, me",
	"albany":      "albany, ny",
	"columbus":    "columbus, oh",
	"richmond":    "richmond, va",
	"salem":       "salem, or",
	"concord":     "concord, nh",
	"arlington":   "arlington, tx",
}

var stateAbbreviations = map[string]string{
	"alabama": "al", "alaska": "ak", "arizona": "az", "arkansas": "ar", "california": "ca",
	"colorado": "co", "connecticut": "ct", "delaware": "de", "florida": "fl", "georgia": "ga",
	"hawaii": "hi", "idaho": "id", "illinois": "il", "indiana": "in", "iowa": "ia",
	"kansas": "ks", "kentucky": "ky", "louisiana": "la", "maine": "me", "maryland": "md",
	"massachusetts": "ma", "michigan": "mi", "minnesota": "mn", "mississippi": "ms", "missouri": "mo",
	"montana": "mt", "nebraska": "ne", "nevada": "nv", "new hampshire": "nh", "new jersey": "nj",
	"new mexico": "nm", "new york": "ny", "north carolina": "nc", "north dakota": "nd", "ohio": "oh",
	"oklahoma": "ok", "oregon": "or", "pennsylvania": "pa", "rhode island": "ri", "south carolina": "sc",
	"south dakota": "sd", "tennessee": "tn", "texas": "tx", "utah": "ut", "vermont": "vt",
	"virginia": "va", "washington": "wa", "west virginia": "wv", "wisconsin": "wi", "wyoming": "wy",
	"district of columbia": "dc",
}

var sortedCityKeys = func() []string {
	keys := make([]string, 0, len(cityTable))
	for k := range cityTable {
		if !strings.Contains(k, ",") {
			keys = append(keys, k)
		}
	}
	// longest first so "kansas city" wins over shorter substrings, then alphabetical
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// normalizeName lowercases, drops periods and collapses whitespace
func normalizeName(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, ".", ""))
	return strings.Join(strings.Fields(s), " ")
}

// splitLocation normalizes "City, State" into city and a two-letter state code
func splitLocation(location string) (city, state string) {
	cityPart, statePart, _ := strings.Cut(location, ",")
	city = normalizeName(cityPart)
	state = normalizeName(statePart)
	if abbr, ok := stateAbbreviations[state]; ok {
		state = abbr
	}
	if fields := strings.Fields(state); len(fields) > 0 && len(fields[0]) == 2 {
		state = fields[0]
	}
	return city, state
}

// LookupCity resolves a location against the built-in table only.
// "City, ST" tries the state-qualified key first, then the plain city, then the
// ambiguous default, then a partial match.
func LookupCity(location string) (GeoPoint, bool) {
	city, state := splitLocation(location)
	if city == "" {
		return GeoPoint{}, false
	}

	if state != "" {
		if pt, ok := cityTable[city+", "+state]; ok {
			return pt, true
		}
	}
	if pt, ok := cityTable[city]; ok {
		return pt, true
	}
	if key, ok := ambiguousDefaults[city]; ok {
		return cityTable[key], true
	}

	for _, key := range sortedCityKeys {
		if strings.Contains(city, key) || (len(city) >= 4 && strings.Contains(key, city)) {
			return cityTable[key], true
		}
	}
	return GeoPoint{}, false
}

// KnownCities returns every table key, sorted
func KnownCities() []string {
	keys := make([]string, 0, len(cityTable))
	for k := range cityTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
