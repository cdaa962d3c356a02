package rulesets

import (
	"sort"
	"sync"

	"github.com/liamcoop/precheck/validators"
	"github.com/shopspring/decimal"
)

// Known ruleset ids.
const (
	DEUStG = "DE_USTG"
	EUVAT  = "EU_VAT"
	UKVAT  = "UK_VAT"
)

// catalog is built on first use and never written afterwards.
var catalog = sync.OnceValue(func() map[string]Ruleset {
	return map[string]Ruleset{
		DEUStG: germanUStG(),
		EUVAT:  euVATDirective(),
		UKVAT:  ukVAT(),
	}
})

// Get returns a copy of the ruleset registered under id.
func Get(id string) (Ruleset, bool) {
	r, ok := catalog()[id]
	if !ok {
		return Ruleset{}, false
	}
	return r.clone(), true
}

// IDs lists the registered ruleset ids in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(catalog()))
	for id := range catalog() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func present(featureID string, v any) validators.Result {
	return validators.ValidatePresent(featureID, v)
}

func date(featureID string, v any) validators.Result {
	return validators.ValidateDate(v, featureID, nil, nil)
}

func monetary(featureID string, v any) validators.Result {
	return validators.ValidateAmount(v, featureID, validators.MonetaryAmount())
}

// vatAmount allows zero so that zero-rated and reverse-charge invoices pass.
func vatAmount(featureID string, v any) validators.Result {
	opts := validators.MonetaryAmount()
	opts.MinInclusive = true
	return validators.ValidateAmount(v, featureID, opts)
}

func vatRate(jurisdiction string) ValidateFunc {
	return func(_ string, v any) validators.Result {
		return validators.ValidateVATRate(v, jurisdiction)
	}
}

func fixedField(featureID string, r validators.Result) validators.Result {
	r.Field = featureID
	return r
}

func germanTaxNumber(featureID string, v any) validators.Result {
	return fixedField(featureID, validators.ValidateGermanTaxID(v))
}

func germanVATID(featureID string, v any) validators.Result {
	return fixedField(featureID, validators.ValidateGermanVATID(v))
}

func euVATID(featureID string, v any) validators.Result {
	return fixedField(featureID, validators.ValidateEUVATID(v, ""))
}

func ukVATID(featureID string, v any) validators.Result {
	return fixedField(featureID, validators.ValidateUKVATID(v))
}

func invoiceNumber(featureID string, v any) validators.Result {
	return fixedField(featureID, validators.ValidateInvoiceNumber(v))
}

func iban(featureID string, v any) validators.Result {
	return fixedField(featureID, validators.ValidateIBAN(v))
}

func threshold(jurisdiction string) decimal.Decimal {
	t, _ := validators.SmallAmountThreshold(jurisdiction)
	return t
}

func germanUStG() Ruleset {
	const ustg = "§14 Abs. 4 Satz 1 "
	return Ruleset{
		ID:           DEUStG,
		Name:         "Umsatzsteuergesetz (Germany)",
		Jurisdiction: validators.JurisdictionDE,
		Version:      "2025.1",
		Features: []FeatureDefinition{
			{ID: "supplier_name", RequiredLevel: Required, Category: CategoryParty, LegalBasis: ustg + "Nr. 1 UStG", Description: "Full name of the supplier", Validate: present},
			{ID: "supplier_address", RequiredLevel: Required, Category: CategoryParty, LegalBasis: ustg + "Nr. 1 UStG", Description: "Full address of the supplier", Validate: present},
			{ID: "customer_name", RequiredLevel: Required, Category: CategoryParty, LegalBasis: ustg + "Nr. 1 UStG", Description: "Full name of the recipient", Validate: present},
			{ID: "customer_address", RequiredLevel: Required, Category: CategoryParty, LegalBasis: ustg + "Nr. 1 UStG", Description: "Full address of the recipient", Validate: present},
			{ID: "tax_number", RequiredLevel: Conditional, Category: CategoryTaxID, LegalBasis: ustg + "Nr. 2 UStG", Description: "Tax number of the supplier", Validate: germanTaxNumber},
			{ID: "vat_id", RequiredLevel: Conditional, Category: CategoryTaxID, LegalBasis: ustg + "Nr. 2 UStG", Description: "VAT identification number of the supplier", Validate: germanVATID},
			{ID: "invoice_date", RequiredLevel: Required, Category: CategoryDates, LegalBasis: ustg + "Nr. 3 UStG", Description: "Date of issue", Validate: date},
			{ID: "invoice_number", RequiredLevel: Required, Category: CategoryIdentification, LegalBasis: ustg + "Nr. 4 UStG", Description: "Unique sequential invoice number", Validate: invoiceNumber},
			{ID: "service_description", RequiredLevel: Required, Category: CategoryService, LegalBasis: ustg + "Nr. 5 UStG", Description: "Quantity and type of goods or scope of services", Validate: present},
			{ID: "delivery_date", RequiredLevel: Conditional, Category: CategoryDates, LegalBasis: ustg + "Nr. 6 UStG", Description: "Date of supply or service", Validate: date},
			{ID: "net_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: ustg + "Nr. 7 UStG", Description: "Net amount by tax rate", Validate: monetary},
			{ID: "vat_rate", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: ustg + "Nr. 8 UStG", Description: "Applicable tax rate", Validate: vatRate(validators.JurisdictionDE)},
			{ID: "vat_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: ustg + "Nr. 8 UStG", Description: "Tax amount", Validate: vatAmount},
			{ID: "gross_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: "§33 Satz 1 Nr. 4 UStDV", Description: "Total amount including tax", Validate: monetary},
			{ID: "iban", RequiredLevel: Optional, Category: CategoryPayment, LegalBasis: "", Description: "Bank account for payment", Validate: iban},
		},
		SmallAmount: &SmallAmountRule{
			Threshold: threshold(validators.JurisdictionDE),
			RequiredFeatures: []string{
				"supplier_name", "supplier_address", "invoice_date",
				"service_description", "gross_amount", "vat_rate",
			},
			LegalBasis: "§33 UStDV",
		},
		TaxIDFeatures:   []string{"tax_number", "vat_id"},
		AmountTolerance: validators.DefaultTolerance,
	}
}

func euVATDirective() Ruleset {
	const art = "Art. 226 "
	const directive = " Directive 2006/112/EC"
	return Ruleset{
		ID:           EUVAT,
		Name:         "EU VAT Directive",
		Jurisdiction: validators.JurisdictionEU,
		Version:      "2025.1",
		Features: []FeatureDefinition{
			{ID: "invoice_date", RequiredLevel: Required, Category: CategoryDates, LegalBasis: art + "(1)" + directive, Description: "Date of issue", Validate: date},
			{ID: "invoice_number", RequiredLevel: Required, Category: CategoryIdentification, LegalBasis: art + "(2)" + directive, Description: "Sequential number", Validate: invoiceNumber},
			{ID: "vat_id", RequiredLevel: Required, Category: CategoryTaxID, LegalBasis: art + "(3)" + directive, Description: "Supplier VAT identification number", Validate: euVATID},
			{ID: "customer_vat_id", RequiredLevel: Conditional, Category: CategoryTaxID, LegalBasis: art + "(4)" + directive, Description: "Customer VAT identification number for intra-community supplies", Validate: euVATID},
			{ID: "supplier_name", RequiredLevel: Required, Category: CategoryParty, LegalBasis: art + "(5)" + directive, Description: "Full name of the supplier", Validate: present},
			{ID: "supplier_address", RequiredLevel: Required, Category: CategoryParty, LegalBasis: art + "(5)" + directive, Description: "Full address of the supplier", Validate: present},
			{ID: "customer_name", RequiredLevel: Required, Category: CategoryParty, LegalBasis: art + "(5)" + directive, Description: "Full name of the customer", Validate: present},
			{ID: "customer_address", RequiredLevel: Required, Category: CategoryParty, LegalBasis: art + "(5)" + directive, Description: "Full address of the customer", Validate: present},
			{ID: "service_description", RequiredLevel: Required, Category: CategoryService, LegalBasis: art + "(6)" + directive, Description: "Quantity and nature of goods or services", Validate: present},
			{ID: "delivery_date", RequiredLevel: Conditional, Category: CategoryDates, LegalBasis: art + "(7)" + directive, Description: "Date of supply", Validate: date},
			{ID: "net_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: art + "(8)" + directive, Description: "Taxable amount per rate", Validate: monetary},
			{ID: "vat_rate", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: art + "(9)" + directive, Description: "VAT rate applied", Validate: vatRate(validators.JurisdictionEU)},
			{ID: "vat_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: art + "(10)" + directive, Description: "VAT amount payable", Validate: vatAmount},
			{ID: "gross_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: "Art. 226b" + directive, Description: "Total amount including VAT", Validate: monetary},
			{ID: "iban", RequiredLevel: Optional, Category: CategoryPayment, LegalBasis: "", Description: "Bank account for payment", Validate: iban},
		},
		SmallAmount: &SmallAmountRule{
			Threshold: threshold(validators.JurisdictionEU),
			RequiredFeatures: []string{
				"invoice_date", "vat_id", "supplier_name", "supplier_address",
				"service_description", "gross_amount",
			},
			LegalBasis: "Art. 226b, Art. 238" + directive,
		},
		TaxIDFeatures:   []string{"vat_id"},
		AmountTolerance: validators.DefaultTolerance,
	}
}

func ukVAT() Ruleset {
	const notice = "VAT Notice 700/21 "
	return Ruleset{
		ID:           UKVAT,
		Name:         "UK VAT (HMRC)",
		Jurisdiction: validators.JurisdictionUK,
		Version:      "2025.1",
		Features: []FeatureDefinition{
			{ID: "invoice_number", RequiredLevel: Required, Category: CategoryIdentification, LegalBasis: notice + "s.16.3", Description: "Unique invoice number", Validate: invoiceNumber},
			{ID: "supplier_name", RequiredLevel: Required, Category: CategoryParty, LegalBasis: notice + "s.16.3", Description: "Supplier name", Validate: present},
			{ID: "supplier_address", RequiredLevel: Required, Category: CategoryParty, LegalBasis: notice + "s.16.3", Description: "Supplier address", Validate: present},
			{ID: "vat_id", RequiredLevel: Required, Category: CategoryTaxID, LegalBasis: notice + "s.16.3", Description: "Supplier VAT registration number", Validate: ukVATID},
			{ID: "invoice_date", RequiredLevel: Required, Category: CategoryDates, LegalBasis: notice + "s.16.3", Description: "Invoice date", Validate: date},
			{ID: "delivery_date", RequiredLevel: Conditional, Category: CategoryDates, LegalBasis: notice + "s.16.3", Description: "Time of supply if different from invoice date", Validate: date},
			{ID: "customer_name", RequiredLevel: Required, Category: CategoryParty, LegalBasis: notice + "s.16.3", Description: "Customer name", Validate: present},
			{ID: "customer_address", RequiredLevel: Required, Category: CategoryParty, LegalBasis: notice + "s.16.3", Description: "Customer address", Validate: present},
			{ID: "service_description", RequiredLevel: Required, Category: CategoryService, LegalBasis: notice + "s.16.3", Description: "Description of goods or services", Validate: present},
			{ID: "net_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: notice + "s.16.3", Description: "Total amount excluding VAT", Validate: monetary},
			{ID: "vat_rate", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: notice + "s.16.3", Description: "Rate of VAT per item", Validate: vatRate(validators.JurisdictionUK)},
			{ID: "vat_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: notice + "s.16.3", Description: "Total amount of VAT", Validate: vatAmount},
			{ID: "gross_amount", RequiredLevel: Required, Category: CategoryAmounts, LegalBasis: notice + "s.16.3", Description: "Total amount including VAT", Validate: monetary},
			{ID: "iban", RequiredLevel: Optional, Category: CategoryPayment, LegalBasis: "", Description: "Bank account for payment", Validate: iban},
		},
		SmallAmount: &SmallAmountRule{
			Threshold: threshold(validators.JurisdictionUK),
			RequiredFeatures: []string{
				"supplier_name", "supplier_address", "vat_id", "invoice_date",
				"service_description", "vat_rate", "gross_amount",
			},
			LegalBasis: notice + "s.16.6 (simplified invoice)",
		},
		TaxIDFeatures:   []string{"vat_id"},
		AmountTolerance: validators.DefaultTolerance,
	}
}
