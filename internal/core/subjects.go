package core

// tableSection identifies a NIPA table family by section and subsection,
// e.g. Table 2.4.x is {"2", "4"}.
type tableSection struct {
	section    string
	subsection string
}

// subjectsBySection maps each known NIPA subsection to its subject slug.
// Each subsection is a distinct breakdown of the accounts, so tables within a
// subsection share a subject and differ by measurement.
var subjectsBySection = map[tableSection]string{
	// Section 1: GDP and related aggregates
	{"1", "1"}:  "gdp",
	{"1", "2"}:  "gdp_by_product",
	{"1", "3"}:  "value_added_by_sector",
	{"1", "4"}:  "gdp_purchases_final_sales",
	{"1", "5"}:  "gdp_expanded",
	{"1", "6"}:  "domestic_purchases",
	{"1", "7"}:  "gdp_gnp_nnp",
	{"1", "8"}:  "gdp_command_basis",
	{"1", "9"}:  "net_value_added",
	{"1", "10"}: "domestic_income",
	{"1", "11"}: "domestic_income_shares",
	{"1", "12"}: "national_income",
	{"1", "13"}: "national_income_by_sector",
	{"1", "14"}: "corporate_value_added",
	{"1", "15"}: "corporate_profit_per_unit",
	{"1", "16"}: "private_enterprise_income",
	{"1", "17"}: "gdp_gdi_aggregates",

	// Section 2: Personal income and outlays
	{"2", "1"}: "personal_income",
	{"2", "2"}: "personal_income_disposition",
	{"2", "3"}: "pce_by_function",
	{"2", "4"}: "pce_by_type",
	{"2", "5"}: "pce_bridges",
	{"2", "6"}: "personal_income_monthly",
	{"2", "7"}: "wages_monthly",
	{"2", "8"}: "pce_supplemental",

	// Section 3: Government
	{"3", "1"}:  "govt_receipts_expenditures",
	{"3", "2"}:  "federal_govt",
	{"3", "3"}:  "state_local_govt",
	{"3", "4"}:  "govt_social_benefits",
	{"3", "5"}:  "govt_taxes",
	{"3", "6"}:  "govt_contributions",
	{"3", "7"}:  "govt_taxes_receipts",
	{"3", "8"}:  "govt_subsidies",
	{"3", "9"}:  "govt_consumption",
	{"3", "10"}: "govt_consumption_output",
	{"3", "11"}: "defense_spending",
	{"3", "12"}: "govt_output",
	{"3", "13"}: "govt_employment",
	{"3", "14"}: "govt_compensation",
	{"3", "15"}: "govt_investment_detail",
	{"3", "16"}: "govt_receipts_detail",
	{"3", "17"}: "govt_spending_function",
	{"3", "18"}: "federal_govt_detail",
	{"3", "19"}: "state_local_detail",
	{"3", "20"}: "social_insurance",
	{"3", "21"}: "social_insurance_funds",

	// Section 4: Foreign transactions
	{"4", "1"}: "trade_balance",
	{"4", "2"}: "exports_imports",
	{"4", "3"}: "trade_detail",

	// Section 5: Saving and investment
	{"5", "1"}:  "saving_investment",
	{"5", "2"}:  "private_investment_type",
	{"5", "3"}:  "private_fixed_investment",
	{"5", "4"}:  "nonresidential_investment",
	{"5", "5"}:  "residential_investment",
	{"5", "6"}:  "investment_equipment",
	{"5", "7"}:  "inventories",
	{"5", "8"}:  "inventories_detail",
	{"5", "9"}:  "govt_fixed_investment",
	{"5", "10"}: "capital_stock",
	{"5", "11"}: "capital_consumption",

	// Section 6: Income and employment by industry
	{"6", "1"}:  "income_by_industry",
	{"6", "2"}:  "compensation_by_industry",
	{"6", "3"}:  "wages_by_industry",
	{"6", "4"}:  "supplements_by_industry",
	{"6", "5"}:  "employment_by_industry",
	{"6", "6"}:  "hours_by_industry",
	{"6", "7"}:  "labor_productivity",
	{"6", "8"}:  "labor_costs",
	{"6", "9"}:  "proprietors_income",
	{"6", "10"}: "rental_income",
	{"6", "11"}: "corporate_profits_by_industry",
	{"6", "12"}: "net_interest",
	{"6", "13"}: "taxes_by_industry",
	{"6", "14"}: "capital_consumption_by_industry",
	{"6", "15"}: "undistributed_profits",
	{"6", "16"}: "corporate_profits",
	{"6", "17"}: "corporate_profits_detail",
	{"6", "18"}: "profits_iva_ccadj",
	{"6", "19"}: "profits_financial_nonfinancial",
	{"6", "20"}: "profits_receipts",
	{"6", "21"}: "profits_taxes",
	{"6", "22"}: "profits_after_tax",

	// Section 7: Supplemental tables
	{"7", "1"}:  "motor_vehicle_output",
	{"7", "2"}:  "auto_output",
	{"7", "3"}:  "farm_sector",
	{"7", "4"}:  "housing",
	{"7", "5"}:  "housing_output",
	{"7", "6"}:  "nonprofit_institutions",
	{"7", "7"}:  "food_services",
	{"7", "8"}:  "petroleum",
	{"7", "9"}:  "energy",
	{"7", "10"}: "cpi_pce_comparison",
	{"7", "11"}: "implicit_deflators",
	{"7", "12"}: "real_pce_detail",
	{"7", "13"}: "pce_by_function_detail",
	{"7", "14"}: "farm_income",
	{"7", "15"}: "farm_income_detail",
	{"7", "16"}: "govt_social_insurance",
	{"7", "17"}: "employer_contributions",
	{"7", "18"}: "contributions_detail",
	{"7", "20"}: "pensions_defined_benefit",
	{"7", "21"}: "pensions_defined_contribution",
	{"7", "22"}: "pensions_federal",
	{"7", "23"}: "pensions_state_local",
	{"7", "24"}: "pensions_private",
	{"7", "25"}: "pensions_ira_keogh",

	// Section 8: Not seasonally adjusted
	{"8", "1"}: "gdp_nsa",
	{"8", "3"}: "federal_govt_nsa",
	{"8", "4"}: "state_local_govt_nsa",
}

// sectionNames provides the subject prefix for subsections missing from
// subjectsBySection.
var sectionNames = map[string]string{
	"1": "gdp",
	"2": "personal",
	"3": "govt",
	"4": "trade",
	"5": "investment",
	"6": "industry",
	"7": "supplemental",
	"8": "nsa",
}

// lookupSubject resolves a section/subsection pair to a subject slug.
func lookupSubject(section, subsection string) string {
	if subject, ok := subjectsBySection[tableSection{section, subsection}]; ok {
		return subject
	}
	base, ok := sectionNames[section]
	if !ok {
		base = "s" + section
	}
	return base + "_" + subsection
}
