package rpcapi

// russianPublicHolidays is the fixed public-holiday calendar for the
// default Europe/Moscow installation, covering the years the admin
// surface accepts for holiday input (2024-2030). Government-decreed
// one-off day shifts around weekends are not modeled.
var russianPublicHolidays = []holidayBody{
	{Date: "2024-01-01", Name: "Новый год"},
	{Date: "2024-01-02", Name: "Новогодние каникулы"},
	{Date: "2024-01-07", Name: "Рождество Христово"},
	{Date: "2024-02-23", Name: "День защитника Отечества"},
	{Date: "2024-03-08", Name: "Международный женский день"},
	{Date: "2024-05-01", Name: "Праздник Весны и Труда"},
	{Date: "2024-05-09", Name: "День Победы"},
	{Date: "2024-06-12", Name: "День России"},
	{Date: "2024-11-04", Name: "День народного единства"},

	{Date: "2025-01-01", Name: "Новый год"},
	{Date: "2025-01-02", Name: "Новогодние каникулы"},
	{Date: "2025-01-07", Name: "Рождество Христово"},
	{Date: "2025-02-23", Name: "День защитника Отечества"},
	{Date: "2025-03-08", Name: "Международный женский день"},
	{Date: "2025-05-01", Name: "Праздник Весны и Труда"},
	{Date: "2025-05-09", Name: "День Победы"},
	{Date: "2025-06-12", Name: "День России"},
	{Date: "2025-11-04", Name: "День народного единства"},

	{Date: "2026-01-01", Name: "Новый год"},
	{Date: "2026-01-02", Name: "Новогодние каникулы"},
	{Date: "2026-01-07", Name: "Рождество Христово"},
	{Date: "2026-02-23", Name: "День защитника Отечества"},
	{Date: "2026-03-08", Name: "Международный женский день"},
	{Date: "2026-05-01", Name: "Праздник Весны и Труда"},
	{Date: "2026-05-09", Name: "День Победы"},
	{Date: "2026-06-12", Name: "День России"},
	{Date: "2026-11-04", Name: "День народного единства"},

	{Date: "2027-01-01", Name: "Новый год"},
	{Date: "2027-01-02", Name: "Новогодние каникулы"},
	{Date: "2027-01-07", Name: "Рождество Христово"},
	{Date: "2027-02-23", Name: "День защитника Отечества"},
	{Date: "2027-03-08", Name: "Международный женский день"},
	{Date: "2027-05-01", Name: "Праздник Весны и Труда"},
	{Date: "2027-05-09", Name: "День Победы"},
	{Date: "2027-06-12", Name: "День России"},
	{Date: "2027-11-04", Name: "День народного единства"},

	{Date: "2028-01-01", Name: "Новый год"},
	{Date: "2028-01-02", Name: "Новогодние каникулы"},
	{Date: "2028-01-07", Name: "Рождество Христово"},
	{Date: "2028-02-23", Name: "День защитника Отечества"},
	{Date: "2028-03-08", Name: "Международный женский день"},
	{Date: "2028-05-01", Name: "Праздник Весны и Труда"},
	{Date: "2028-05-09", Name: "День Победы"},
	{Date: "2028-06-12", Name: "День России"},
	{Date: "2028-11-04", Name: "День народного единства"},

	{Date: "2029-01-01", Name: "Новый год"},
	{Date: "2029-01-02", Name: "Новогодние каникулы"},
	{Date: "2029-01-07", Name: "Рождество Христово"},
	{Date: "2029-02-23", Name: "День защитника Отечества"},
	{Date: "2029-03-08", Name: "Международный женский день"},
	{Date: "2029-05-01", Name: "Праздник Весны и Труда"},
	{Date: "2029-05-09", Name: "День Победы"},
	{Date: "2029-06-12", Name: "День России"},
	{Date: "2029-11-04", Name: "День народного единства"},

	{Date: "2030-01-01", Name: "Новый год"},
	{Date: "2030-01-02", Name: "Новогодние каникулы"},
	{Date: "2030-01-07", Name: "Рождество Христово"},
	{Date: "2030-02-23", Name: "День защитника Отечества"},
	{Date: "2030-03-08", Name: "Международный женский день"},
	{Date: "2030-05-01", Name: "Праздник Весны и Труда"},
	{Date: "2030-05-09", Name: "День Победы"},
	{Date: "2030-06-12", Name: "День России"},
	{Date: "2030-11-04", Name: "День народного единства"},
}
