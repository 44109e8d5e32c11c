// internal/router/content.go
package router

import "fmt"

// Reply texts. They are sent verbatim; WhatsApp renders *bold*.
const (
	bookingPromptText = "Beleza! Para agendar, por favor, me diga o dia e a hora que você gostaria.\n\n" +
		"Use o formato *DD/MM/AAAA HH:MM* (ex: 25/12/2025 15:00)."

	pricesText = "Aqui estão nossos preços:\n\n" +
		"*Corte Masculino:* R$ 40,00\n" +
		"*Barba:* R$ 30,00\n" +
		"*Corte + Barba:* R$ 65,00\n" +
		"*Pezinho:* R$ 15,00\n\n" +
		"Qualquer dúvida, é só chamar!"

	servicesText = "Oferecemos o melhor para o seu estilo:\n\n" +
		"- Cortes modernos e clássicos\n" +
		"- Design e manutenção de barba\n" +
		"- Hidratação capilar e de barba\n\n" +
		"Nosso objetivo é garantir que você saia daqui renovado!"

	contactText = "Para falar diretamente com o Borel, você pode ligar ou mandar uma mensagem para o número " +
		"(XX) XXXXX-XXXX. Se for urgente, pode ligar, beleza?"

	faqText = "Algumas dúvidas comuns:\n\n" +
		"*Qual o horário de funcionamento?*\n" +
		"Ter a Qui: 10h às 21h\n" +
		"Sex e Sáb: 9h às 22h\n\n" +
		"*Onde fica a barbearia?*\n" +
		"R. Alarico de Toledo Piza, 788 - Vila Silva Teles, São Paulo - SP, 08110-180\n\n" +
		"*Aceitam cartão?*\n" +
		"Sim! Aceitamos crédito, débito e PIX."

	bookingFailedText = "❌ Desculpe, não consegui agendar seu horário. Parece que houve um erro com a nossa agenda. " +
		"Por favor, tente falar com um atendente."

	formatHelpText = "❌ Ops! O formato de data e hora parece inválido. Por favor, envie novamente usando " +
		"*DD/MM/AAAA HH:MM* (exemplo: 25/12/2025 15:00)."

	// bookingDescriptionFormat is formatted with the customer's sender id.
	bookingDescriptionFormat = "Agendamento para o cliente com WhatsApp: %s"
)

// greetings are matched against the trimmed, lower-cased body.
var greetings = map[string]struct{}{
	"menu":      {},
	"oi":        {},
	"olá":       {},
	"ola":       {},
	"bom dia":   {},
	"boa tarde": {},
	"boa noite": {},
	"borel":     {},
	"opa":       {},
}

func welcomeText(name string) string {
	return fmt.Sprintf("Forte Abraço, %s!\n\n"+
		"Como posso te ajudar hoje? Escolha uma das opções abaixo:\n\n"+
		"*1* - Agendar um horário 🗓️\n"+
		"*2* - Tabela de preços 💰\n"+
		"*3* - Nossos Serviços 💈\n"+
		"*4* - Falar com o Borel 👨‍💼\n"+
		"*5* - Dúvidas Frequentes 🤔", name)
}

func ackText(raw string) string {
	return fmt.Sprintf("Confirmando agendamento para %s. Só um momento...", raw)
}

func bookedText(link string) string {
	return fmt.Sprintf("✅ Ótimo! Seu horário foi agendado com sucesso.\n\nVocê pode ver os detalhes aqui: %s", link)
}
