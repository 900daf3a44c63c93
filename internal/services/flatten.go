package services

import (
	"fmt"
	"sort"
	"strings"
)

// baseColumns fixes the worksheet column order for the flattened report
// rows. Risk columns follow at the end.
var baseColumns = []string{
	"Sector",
	"1. Corporate Identity Number (CIN)",
	"2. Name of Listed Entity",
	"3. Year of Incorporation",
	"4. Registered office address",
	"5. Corporate office address",
	"6. Email ID",
	"7. Telephone number",
	"8. Website",
	"9. Financial Year",
	"10. Stock Exchange Listing",
	"11. Paid-up Capital",
	"12. Contact Person Details",
	"13. Reporting boundary",
	"14. Name of assurance provider",
	"15. Type of assurance",
	"16. Business Activity",
	"16.a Main Business Activity",
	"16.b Description of Business Activity",
	"16.c % of Turnover",
	"17. Products/Services",
	"17.a Product/Service",
	"17.b NIC Code",
	"17.c % Turnover",
	"18. Number of Locations",
	"18.a National Plants",
	"18.b National Offices",
	"18.c International Plants",
	"18.d International Offices",
	"19.a International Countries",
	"19.b Export %",
	"19.c Customers Brief",
	"20. Employees and Workers",
	"20.A Total Permanent Employees",
	"20.A Permanent Male Employees",
	"20.A Permanent Female Employees",
	"20.A Other than Permanent",
	"20.A Other Male",
	"20.A Other Female",
	"20.A Total Employees",
	"20.A Total Male",
	"20.A Total Female",
	"20.B Permanent Workers",
	"20.B Permanent Male Workers",
	"20.B Permanent Female Workers",
	"20.B Other Workers",
	"20.B Other Male Workers",
	"20.B Other Female Workers",
	"20.B Total Workers",
	"20.B Total Male Workers",
	"20.B Total Female Workers",
	"20.C DA Employees Total Permanent",
	"20.C DA Permanent Male",
	"20.C DA Permanent Female",
	"20.C DA Other",
	"20.C DA Other Male",
	"20.C DA Other Female",
	"20.C DA Total Employees",
	"21. Women Representation",
	"21.a Board Total",
	"21.b Board Women",
	"21.c KMP Total",
	"21.d KMP Women",
	"22. Turnover Rate",
	"22.a Emp Male",
	"22.b Emp Female",
	"22.c Emp Total",
	"22.d Worker Male",
	"22.e Worker Female",
	"22.f Worker Total",
	"23. Group Entity",
	"23. Group Entity Type",
	"23. Mapped Group Entity Type",
	"23. % Shares",
	"24.a CSR Applicable",
	"24.b CSR Turnover",
	"24.c CSR Net Worth",
	"25. Grievance Redressal",
	"25.a Communities",
	"25.a Investors (other than shareholders)",
	"25.a Shareholders",
	"25.a Employees and workers",
	"25.a Customers",
	"25.a Value Chain Partners",
	"25.a Others",
	"25.b Communities",
	"25.b Investors (other than shareholders)",
	"25.b Shareholders",
	"25.b Employees and workers",
	"25.b Customers",
	"25.b Value Chain Partners",
	"25.b Others",
	"25.c Communities",
	"25.c Investors (other than shareholders)",
	"25.c Shareholders",
	"25.c Employees and workers",
	"25.c Customers",
	"25.c Value Chain Partners",
	"25.c Others",
}

var riskColumns = []string{
	"26. Category",
	"26. Material Issue",
	"26. Risk/Opportunity",
	"26. Rationale",
	"26. Financial Impact",
	"26. Approach to Adapt/Mitigate",
}

// reportColumns is the full ordered header row.
var reportColumns = append(append([]string{}, baseColumns...), riskColumns...)

// entityTypeMapping canonicalizes group entity type labels to BRSR
// vocabulary. Lookups are exact on the lowercased trimmed label; labels not
// listed here fall through to the substring heuristics, which also cover
// verbose variants like "subsidiary (incorporated under section 8 of the
// companies act, 2013)".
var entityTypeMapping = map[string]string{
	"associate":                         "Associate Company",
	"associate company":                 "Associate Company",
	"joint venture":                     "Joint Venture",
	"subsidiary":                        "Subsidiary Company",
	"subsidiary company":                "Subsidiary Company",
	"material wholly owned subsidiary":  "Wholly Owned Subsidiary",
	"step down wholly owned subsidiary": "Wholly Owned Subsidiary",
	"wholly owned subsidiary":           "Wholly Owned Subsidiary",
	"holding":                           "Holding Company",
	"intermediary holding":              "Intermediary Holding Company",
	"ultimate holding":                  "Ultimate Holding Company",
	"step-down subsidiary":              "Step-Down Subsidiary",
}

// mapGroupEntityType maps a free-form entity type to its canonical label.
// Unrecognized labels fall through the substring heuristics and finally
// pass through trimmed but otherwise unchanged.
func mapGroupEntityType(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	key := strings.ToLower(trimmed)
	if mapped, ok := entityTypeMapping[key]; ok {
		return mapped
	}
	switch {
	case strings.Contains(key, "wholly owned"):
		return "Wholly Owned Subsidiary"
	case strings.Contains(key, "ultimate holding"):
		return "Ultimate Holding Company"
	case strings.Contains(key, "intermediary") && strings.Contains(key, "holding"):
		return "Intermediary Holding Company"
	case strings.Contains(key, "associate"):
		return "Associate Company"
	case strings.Contains(key, "joint") && strings.Contains(key, "venture"):
		return "Joint Venture"
	case key == "holding" || strings.HasSuffix(key, " holding"):
		return "Holding Company"
	case strings.Contains(key, "subsidiary"):
		return "Subsidiary Company"
	}
	return trimmed
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// dig walks nested maps along keys, returning nil when any hop is absent.
func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj := asMap(cur)
		if obj == nil {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

// buildBaseRow flattens one extracted payload to the single-row column view.
// Missing sections simply leave their cells nil.
func buildBaseRow(data map[string]any) map[string]any {
	entity := asMap(data["entity_details"])
	business := asMap(data["business_activity"])
	products := asList(data["products_services"])
	locations := asMap(data["locations"])
	markets := asMap(data["markets_served"])
	employees := asMap(data["employees"])
	women := asMap(data["women_representation"])
	turnover := asMap(data["turnover_rate"])
	csr := asMap(data["csr"])
	grievances := asMap(data["grievances"])

	product := map[string]any{}
	if len(products) > 0 {
		product = asMap(products[0])
	}

	get := func(m map[string]any, k string) any {
		if m == nil {
			return nil
		}
		return m[k]
	}

	row := make(map[string]any, len(baseColumns))
	row["Sector"] = get(entity, "sector")
	row["1. Corporate Identity Number (CIN)"] = get(entity, "cin")
	row["2. Name of Listed Entity"] = get(entity, "name")
	row["3. Year of Incorporation"] = get(entity, "year_of_incorporation")
	row["4. Registered office address"] = get(entity, "registered_office_address")
	row["5. Corporate office address"] = get(entity, "corporate_office_address")
	row["6. Email ID"] = get(entity, "email")
	row["7. Telephone number"] = get(entity, "telephone")
	row["8. Website"] = get(entity, "website")
	row["9. Financial Year"] = get(entity, "financial_year")
	row["10. Stock Exchange Listing"] = get(entity, "stock_exchange_listing")
	row["11. Paid-up Capital"] = get(entity, "paid_up_capital")
	row["12. Contact Person Details"] = get(entity, "contact_person_details")
	row["13. Reporting boundary"] = get(entity, "reporting_boundary")
	row["14. Name of assurance provider"] = get(entity, "assurance_provider")
	row["15. Type of assurance"] = get(entity, "assurance_type")

	row["16. Business Activity"] = ""
	row["16.a Main Business Activity"] = get(business, "main_activity_description")
	row["16.b Description of Business Activity"] = get(business, "description")
	row["16.c % of Turnover"] = get(business, "percent_of_turnover")

	row["17. Products/Services"] = ""
	row["17.a Product/Service"] = get(product, "product_service")
	row["17.b NIC Code"] = get(product, "nic_code")
	row["17.c % Turnover"] = get(product, "percent_of_total_turnover")

	row["18. Number of Locations"] = ""
	row["18.a National Plants"] = get(locations, "national_plants")
	row["18.b National Offices"] = get(locations, "national_offices")
	row["18.c International Plants"] = get(locations, "international_plants")
	row["18.d International Offices"] = get(locations, "international_offices")

	row["19.a International Countries"] = get(markets, "international_countries")
	row["19.b Export %"] = get(markets, "export_percent")
	row["19.c Customers Brief"] = get(markets, "customers_brief")

	emp := asMap(get(employees, "employees"))
	row["20. Employees and Workers"] = ""
	row["20.A Total Permanent Employees"] = get(emp, "total_permanent")
	row["20.A Permanent Male Employees"] = get(emp, "permanent_male")
	row["20.A Permanent Female Employees"] = get(emp, "permanent_female")
	row["20.A Other than Permanent"] = get(emp, "other_than_permanent")
	row["20.A Other Male"] = get(emp, "other_than_permanent_male")
	row["20.A Other Female"] = get(emp, "other_than_permanent_female")
	row["20.A Total Employees"] = get(emp, "total_employees")
	row["20.A Total Male"] = get(emp, "total_male")
	row["20.A Total Female"] = get(emp, "total_female")

	workers := asMap(get(employees, "workers"))
	row["20.B Permanent Workers"] = get(workers, "total_permanent")
	row["20.B Permanent Male Workers"] = get(workers, "permanent_male")
	row["20.B Permanent Female Workers"] = get(workers, "permanent_female")
	row["20.B Other Workers"] = get(workers, "other_than_permanent")
	row["20.B Other Male Workers"] = get(workers, "other_than_permanent_male")
	row["20.B Other Female Workers"] = get(workers, "other_than_permanent_female")
	row["20.B Total Workers"] = get(workers, "total_workers")
	row["20.B Total Male Workers"] = get(workers, "total_male")
	row["20.B Total Female Workers"] = get(workers, "total_female")

	daEmp := asMap(get(employees, "differently_abled_employees"))
	row["20.C DA Employees Total Permanent"] = get(daEmp, "total_permanent")
	row["20.C DA Permanent Male"] = get(daEmp, "permanent_male")
	row["20.C DA Permanent Female"] = get(daEmp, "permanent_female")
	row["20.C DA Other"] = get(daEmp, "other_than_permanent")
	row["20.C DA Other Male"] = get(daEmp, "other_than_permanent_male")
	row["20.C DA Other Female"] = get(daEmp, "other_than_permanent_female")
	row["20.C DA Total Employees"] = get(daEmp, "total_employees")

	row["21. Women Representation"] = ""
	row["21.a Board Total"] = get(women, "board_of_directors_total")
	row["21.b Board Women"] = get(women, "board_of_directors_women")
	row["21.c KMP Total"] = get(women, "kmp_total")
	row["21.d KMP Women"] = get(women, "kmp_women")

	row["22. Turnover Rate"] = ""
	row["22.a Emp Male"] = dig(turnover, "permanent_employees", "male")
	row["22.b Emp Female"] = dig(turnover, "permanent_employees", "female")
	row["22.c Emp Total"] = dig(turnover, "permanent_employees", "total")
	row["22.d Worker Male"] = dig(turnover, "permanent_workers", "male")
	row["22.e Worker Female"] = dig(turnover, "permanent_workers", "female")
	row["22.f Worker Total"] = dig(turnover, "permanent_workers", "total")

	holdings := asList(data["holding_subsidiaries"])
	firstHolding := map[string]any{}
	if len(holdings) > 0 {
		firstHolding = asMap(holdings[0])
	}
	rawType := fmt.Sprintf("%v", orEmpty(get(firstHolding, "type")))
	row["23. Group Entity"] = get(firstHolding, "name")
	row["23. Group Entity Type"] = get(firstHolding, "type")
	row["23. Mapped Group Entity Type"] = mapGroupEntityType(rawType)
	row["23. % Shares"] = get(firstHolding, "percent_shares_held")

	row["24.a CSR Applicable"] = get(csr, "is_applicable")
	row["24.b CSR Turnover"] = get(csr, "turnover_inr_cr")
	row["24.c CSR Net Worth"] = get(csr, "net_worth_inr_cr")

	row["25. Grievance Redressal"] = ""
	for prefix, section := range map[string]string{
		"25.a": "mechanism_in_place",
		"25.b": "filed",
		"25.c": "pending",
	} {
		sec := asMap(get(grievances, section))
		row[prefix+" Communities"] = get(sec, "communities")
		row[prefix+" Investors (other than shareholders)"] = get(sec, "investors_other_than_shareholders")
		row[prefix+" Shareholders"] = get(sec, "shareholders")
		row[prefix+" Employees and workers"] = get(sec, "employees_and_workers")
		row[prefix+" Customers"] = get(sec, "customers")
		row[prefix+" Value Chain Partners"] = get(sec, "value_chain_partners")
		row[prefix+" Others"] = get(sec, "other_please_specify")
	}

	return row
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// riskItemsForCategory tolerates both payload shapes the model produces for
// material_risks_opportunities: an object keyed by category, or a flat list
// of items (optionally nesting category-keyed lists).
func riskItemsForCategory(risks any, category string) []map[string]any {
	var out []map[string]any
	switch v := risks.(type) {
	case map[string]any:
		for _, item := range asList(v[category]) {
			if m := asMap(item); m != nil {
				out = append(out, m)
			}
		}
	case []any:
		for _, el := range v {
			m := asMap(el)
			if m == nil {
				continue
			}
			if nested, ok := m[category].([]any); ok {
				for _, item := range nested {
					if im := asMap(item); im != nil {
						out = append(out, im)
					}
				}
				continue
			}
			_, hasIssue := m["material_issue"]
			_, hasRationale := m["rationale"]
			_, hasKind := m["risk_or_opportunity"]
			if hasIssue || hasRationale || hasKind {
				out = append(out, m)
			}
		}
	}
	return out
}

var riskCategories = []string{"environment", "social", "governance"}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// expandRows fans one payload out to its final worksheet rows. Holdings and
// risk items are zipped positionally; rows past the first carry only the
// entity identifiers so the sheet stays readable.
func expandRows(data map[string]any, baseRow map[string]any) []map[string]any {
	holdings := make([]map[string]any, 0)
	for _, h := range asList(data["holding_subsidiaries"]) {
		if m := asMap(h); m != nil {
			holdings = append(holdings, m)
		}
	}
	sort.SliceStable(holdings, func(i, j int) bool {
		ti := fmt.Sprintf("%v", orEmpty(holdings[i]["type"]))
		tj := fmt.Sprintf("%v", orEmpty(holdings[j]["type"]))
		return ti < tj
	})

	var riskRows []map[string]any
	for _, category := range riskCategories {
		for _, item := range riskItemsForCategory(data["material_risks_opportunities"], category) {
			riskRow := make(map[string]any, len(riskColumns))
			riskRow["26. Category"] = capitalize(category)
			riskRow["26. Material Issue"] = item["material_issue"]
			riskRow["26. Risk/Opportunity"] = item["risk_or_opportunity"]
			riskRow["26. Rationale"] = item["rationale"]
			riskRow["26. Financial Impact"] = item["financial_implications"]
			riskRow["26. Approach to Adapt/Mitigate"] = item["approach_to_adapt_mitigate"]
			riskRows = append(riskRows, riskRow)
		}
	}

	maxRows := len(holdings)
	if len(riskRows) > maxRows {
		maxRows = len(riskRows)
	}
	if maxRows < 1 {
		maxRows = 1
	}

	rows := make([]map[string]any, 0, maxRows)
	for i := 0; i < maxRows; i++ {
		var row map[string]any
		if i == 0 {
			row = make(map[string]any, len(baseRow))
			for k, v := range baseRow {
				row[k] = v
			}
		} else {
			row = make(map[string]any, len(baseRow))
			for k := range baseRow {
				row[k] = ""
			}
			row["1. Corporate Identity Number (CIN)"] = baseRow["1. Corporate Identity Number (CIN)"]
			row["2. Name of Listed Entity"] = baseRow["2. Name of Listed Entity"]
		}

		if i < len(holdings) {
			rawType := fmt.Sprintf("%v", orEmpty(holdings[i]["type"]))
			row["23. Group Entity"] = holdings[i]["name"]
			row["23. Group Entity Type"] = holdings[i]["type"]
			row["23. Mapped Group Entity Type"] = mapGroupEntityType(rawType)
			row["23. % Shares"] = holdings[i]["percent_shares_held"]
		}
		if i < len(riskRows) {
			for k, v := range riskRows[i] {
				row[k] = v
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// flattenDocument is the full payload-to-rows transform for one document.
func flattenDocument(data map[string]any) []map[string]any {
	return expandRows(data, buildBaseRow(data))
}
