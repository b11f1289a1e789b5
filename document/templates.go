package document

// template is the body of one agreement type. Placeholders use {{key}};
// defaults fill optional keys and are never reported missing.
type template struct {
	title       string
	suggestions []string
	body        string
	defaults    map[string]string
}

var templates = map[string]template{
	"rental": {
		title: "Residential Rental Agreement",
		suggestions: []string{
			"Consider adding clauses for parking space allocation",
			"Include inventory list for furnished properties",
			"Add escalation clause for annual rent increases",
			"Consider adding society/building rules compliance clause",
		},
		body: `# RENTAL AGREEMENT

**This Rental Agreement is made on {{today}} between:**

**LANDLORD (First Party):**
Name: {{ownerName}}

**TENANT (Second Party):**
Name: {{tenantName}}

## PROPERTY DETAILS
**Property Address:** {{propertyAddress}}

## TERMS AND CONDITIONS

### 1. LEASE PERIOD
This agreement shall be for a period of {{leaseDuration}} commencing from {{startDate}} to {{endDate}}.

### 2. RENT AND DEPOSIT
- **Monthly Rent:** ₹{{monthlyRent}} per month
- **Security Deposit:** ₹{{securityDeposit}}
- Rent shall be paid by the 5th of every month

### 3. USE OF PREMISES
The premises shall be used solely for residential purposes and no commercial activity shall be conducted.

### 4. MAINTENANCE
- Regular maintenance is the responsibility of the Tenant
- Major repairs shall be borne by the Landlord

### 5. TERMINATION
Either party may terminate this agreement by giving 30 days written notice.

### 6. GOVERNING LAW
This agreement shall be governed by the laws of India and jurisdiction of Indian courts.

## SIGNATURES

**Landlord:** {{ownerName}}
**Tenant:** {{tenantName}}

Date: {{today}}
`,
		defaults: map[string]string{"leaseDuration": "11 months"},
	},
	"service": {
		title: "Professional Service Agreement",
		suggestions: []string{
			"Add specific quality metrics and KPIs",
			"Include penalty clauses for delays",
			"Consider adding change request procedures",
			"Add data security and privacy clauses",
		},
		body: `# SERVICE AGREEMENT

**This Service Agreement is executed on {{today}} between:**

**CLIENT (First Party):**
{{clientName}}

**SERVICE PROVIDER (Second Party):**
{{providerName}}

## SCOPE OF SERVICES
{{serviceScope}}

## TERMS AND CONDITIONS

### 1. SERVICE FEE
Total consideration: ₹{{serviceFee}}
Payment Terms: {{paymentTerms}}

### 2. TIMELINE
Services shall be completed within the agreed timeline as mutually decided.

### 3. INTELLECTUAL PROPERTY
All work products created during the service period shall belong to the Client.

### 4. CONFIDENTIALITY
Both parties agree to maintain confidentiality of all proprietary information.

### 5. TERMINATION
Either party may terminate with 15 days written notice.

### 6. DISPUTE RESOLUTION
Any disputes shall be resolved through arbitration in accordance with Indian Arbitration Act.

### 7. GOVERNING LAW
This agreement is governed by Indian laws and subject to Indian jurisdiction.

## SIGNATURES

**Client:** {{clientName}}
**Service Provider:** {{providerName}}

Date: {{today}}
`,
	},
	"nda": {
		title: "Mutual Non-Disclosure Agreement",
		suggestions: []string{
			"Consider adding specific penalties for breach",
			"Include geographic scope limitations",
			"Add data localization requirements if applicable",
			"Consider mutual vs unilateral disclosure structure",
		},
		body: `# NON-DISCLOSURE AGREEMENT (NDA)

**This Non-Disclosure Agreement is executed on {{today}} between:**

**FIRST PARTY:**
{{party1}}

**SECOND PARTY:**
{{party2}}

## PURPOSE
{{purpose}}

## DEFINITION OF CONFIDENTIAL INFORMATION
For the purpose of this Agreement, "Confidential Information" includes:
{{confidentialInfo}}

## TERMS AND CONDITIONS

### 1. OBLIGATIONS
Both parties agree to:
- Keep all Confidential Information strictly confidential
- Use information solely for the stated purpose
- Not disclose to any third party without written consent

### 2. DURATION
This agreement shall remain in effect for {{ndaDuration}} from the date of execution.

### 3. EXCEPTIONS
This agreement does not apply to information that:
- Is already in public domain
- Is independently developed
- Is required to be disclosed by law

### 4. RETURN OF INFORMATION
Upon termination, all confidential materials shall be returned or destroyed.

### 5. GOVERNING LAW
This agreement shall be governed by the laws of {{governingLaw}}.

## SIGNATURES

**First Party:** {{party1}}
**Second Party:** {{party2}}

Date: {{today}}
`,
		defaults: map[string]string{"ndaDuration": "2 years", "governingLaw": "India"},
	},
	"sale": {
		title: "Sale Purchase Agreement",
		suggestions: []string{
			"Add specific inspection checklist for the asset",
			"Include insurance requirements during transit",
			"Consider adding indemnity clauses",
			"Add specific performance guarantees if applicable",
		},
		body: `# SALE AGREEMENT

**This Sale Agreement is executed on {{today}} between:**

**SELLER (First Party):**
{{sellerName}}

**BUYER (Second Party):**
{{buyerName}}

## ITEM/ASSET DETAILS
{{itemDescription}}

## TERMS AND CONDITIONS

### 1. SALE CONSIDERATION
Total sale price: ₹{{salePrice}}
Payment method: {{paymentMethod}}

### 2. DELIVERY
The Seller agrees to deliver the item/asset in good condition.

### 3. TITLE AND OWNERSHIP
Clear and marketable title shall pass to the Buyer upon full payment.

### 4. RISK AND LIABILITY
Risk of loss shall transfer to Buyer upon delivery.

### 5. GOVERNING LAW
This agreement is governed by Indian laws and subject to Indian jurisdiction.

## SIGNATURES

**Seller:** {{sellerName}}
**Buyer:** {{buyerName}}

Date: {{today}}
`,
	},
	"custom": {
		title: "Custom Agreement",
		suggestions: []string{
			"Add specific performance metrics or KPIs",
			"Include liability and indemnification clauses",
			"Consider adding force majeure provisions",
			"Add specific notice and communication procedures",
		},
		body: `# {{agreementTitle}}

**This Agreement is executed on {{today}} between:**

**FIRST PARTY:**
{{firstParty}}

**SECOND PARTY:**
{{secondParty}}

## TERMS AND CONDITIONS

### 1. AGREEMENT TERMS
{{customTerms}}

### 2. ADDITIONAL CLAUSES
{{additionalClauses}}

### 3. MODIFICATION
This agreement may only be modified in writing signed by both parties.

### 4. GOVERNING LAW
This agreement is governed by Indian laws and subject to Indian jurisdiction.

## SIGNATURES

**First Party:** {{firstParty}}
**Second Party:** {{secondParty}}

Date: {{today}}
`,
		defaults: map[string]string{"agreementTitle": "CUSTOM AGREEMENT", "additionalClauses": "None."},
	},
}
