package translate

var agreementPhrases = map[string]string{
	"RENTAL AGREEMENT":         "வாடகை ஒப்பந்தம்",
	"SERVICE AGREEMENT":        "சேவை ஒப்பந்தம்",
	"NON-DISCLOSURE AGREEMENT": "இரகசியத்தன்மை ஒப்பந்தம்",
	"SALE AGREEMENT":           "விற்பனை ஒப்பந்தம்",
	"CUSTOM AGREEMENT":         "தனிப்பயன் ஒப்பந்தம்",
	"TERMS AND CONDITIONS":     "விதிமுறைகள்",
	"SIGNATURES":               "கையெழுத்துகள்",
	"Date:":                    "தேதி:",
	"Name:":                    "பெயர்:",
	"Address:":                 "முகவரி:",
	"Monthly Rent:":            "மாதாந்தர வாடகை:",
	"Security Deposit:":        "பாதுகாப்பு வைப்பு:",
	"LANDLORD":                 "வீட்டு உரிமையாளர்",
	"TENANT":                   "குத்தகைதாரர்",
	"CLIENT":                   "வாடிக்கையாளர்",
	"SERVICE PROVIDER":         "சேவை வழங்குநர்",
	"GOVERNING LAW":            "நிர்வாக சட்டம்",

	"This agreement shall be governed by the laws of India": "இந்த ஒப்பந்தம் இந்திய சட்டங்களால் நிர்வகிக்கப்படும்",
}
